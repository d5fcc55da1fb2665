// internal/app/system/userdir/userdir.go
package userdir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"github.com/dalemusser/chipdash/internal/app/system/selection"
	"github.com/dalemusser/chipdash/internal/domain/models"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const DefaultPath = "/users"

// Filter narrows the user list to the current selection. Empty fields are
// not sent.
type Filter struct {
	StateID        string
	DivisionID     string
	DistrictID     string
	BlockID        string
	SectorID       string
	OrgTypeID      string
	OrganizationID string
	DesignationID  string
}

// FilterFrom copies the selected ids out of s.
func FilterFrom(s selection.State) Filter {
	return Filter{
		StateID:        s.StateID(),
		DivisionID:     s.DivisionID(),
		DistrictID:     s.DistrictID(),
		BlockID:        s.BlockID(),
		SectorID:       s.SectorID(),
		OrgTypeID:      s.OrgTypeID(),
		OrganizationID: s.OrganizationID(),
		DesignationID:  s.DesignationID(),
	}
}

// Query encodes f with the backend's parameter names.
func (f Filter) Query() url.Values {
	q := url.Values{}
	add := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	add("stateId", f.StateID)
	add("divisionId", f.DivisionID)
	add("districtId", f.DistrictID)
	add("blockId", f.BlockID)
	add("sectorId", f.SectorID)
	add("orgTypeId", f.OrgTypeID)
	add("organizationId", f.OrganizationID)
	add("designationId", f.DesignationID)
	return q
}

// Client lists CHIP users for the signed-in session.
type Client struct {
	API      *chipapi.Client
	Log      *zap.Logger
	Path     string
	validate *validator.Validate
}

func New(api *chipapi.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{API: api, Log: logger, Path: DefaultPath, validate: validator.New()}
}

type userList struct {
	Users []models.ChipUser `validate:"dive"`
}

// List returns the users matching f. The response may be a bare array or
// wrapped in {"data": [...]}.
func (c *Client) List(ctx context.Context, f Filter) ([]models.ChipUser, error) {
	var raw json.RawMessage
	if err := c.API.Get(ctx, c.Path, f.Query(), &raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", chipapi.ErrBadResponse, c.Path, err)
		}
		raw = env.Data
	}
	var list userList
	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if err := json.Unmarshal(raw, &list.Users); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", chipapi.ErrBadResponse, c.Path, err)
		}
	}
	if err := c.validate.Struct(list); err != nil {
		c.Log.Warn("user list failed schema", zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", chipapi.ErrBadResponse, c.Path, err)
	}
	if list.Users == nil {
		list.Users = []models.ChipUser{}
	}
	return list.Users, nil
}
