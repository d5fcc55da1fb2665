// internal/app/system/geoorg/client.go
package geoorg

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"github.com/dalemusser/chipdash/internal/app/system/timeouts"
	"github.com/dalemusser/chipdash/internal/domain/models"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// endpoint describes one list resource: its path and the query parameter
// that names the parent (empty for the root).
type endpoint struct {
	path  string
	param string
}

var geoEndpoints = map[models.GeoLevel]endpoint{
	models.LevelState:    {path: "/states"},
	models.LevelDivision: {path: "/divisions", param: "stateId"},
	models.LevelDistrict: {path: "/districts", param: "divisionId"},
	models.LevelBlock:    {path: "/blocks", param: "districtId"},
	models.LevelSector:   {path: "/sectors", param: "blockId"},
}

var orgEndpoints = map[models.OrgKind]endpoint{
	models.KindOrgType:      {path: "/organizationTypes", param: "stateId"},
	models.KindOrganization: {path: "/organizations", param: "orgTypeId"},
	models.KindDesignation:  {path: "/designations", param: "organizationId"},
}

// Client fetches the cascading geography and organization lists.
//
// Every call goes to the backend; nothing is cached. Identical calls that
// are in flight at the same moment for the same caller share one request.
// The shared request runs under its own timeouts.Backend() deadline; each
// caller stops waiting when its own context ends.
type Client struct {
	API      *chipapi.Client
	Log      *zap.Logger
	validate *validator.Validate
	group    singleflight.Group
}

// New returns a Client that issues requests through api.
func New(api *chipapi.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		API:      api,
		Log:      logger,
		validate: validator.New(),
	}
}

// States lists every state. It is the only call without a parent.
func (c *Client) States(ctx context.Context) ([]models.GeoUnit, error) {
	return c.GeoUnits(ctx, models.LevelState, "")
}

// Divisions lists the divisions of a state.
func (c *Client) Divisions(ctx context.Context, stateID string) ([]models.GeoUnit, error) {
	return c.GeoUnits(ctx, models.LevelDivision, stateID)
}

// Districts lists the districts of a division.
func (c *Client) Districts(ctx context.Context, divisionID string) ([]models.GeoUnit, error) {
	return c.GeoUnits(ctx, models.LevelDistrict, divisionID)
}

// Blocks lists the blocks of a district.
func (c *Client) Blocks(ctx context.Context, districtID string) ([]models.GeoUnit, error) {
	return c.GeoUnits(ctx, models.LevelBlock, districtID)
}

// Sectors lists the sectors of a block.
func (c *Client) Sectors(ctx context.Context, blockID string) ([]models.GeoUnit, error) {
	return c.GeoUnits(ctx, models.LevelSector, blockID)
}

// OrgTypes lists the organization types available in a state.
func (c *Client) OrgTypes(ctx context.Context, stateID string) ([]models.OrgUnit, error) {
	return c.OrgUnits(ctx, models.KindOrgType, stateID)
}

// Organizations lists the organizations of an org type.
func (c *Client) Organizations(ctx context.Context, orgTypeID string) ([]models.OrgUnit, error) {
	return c.OrgUnits(ctx, models.KindOrganization, orgTypeID)
}

// Designations lists the designations of an organization.
func (c *Client) Designations(ctx context.Context, organizationID string) ([]models.OrgUnit, error) {
	return c.OrgUnits(ctx, models.KindDesignation, organizationID)
}

// GeoUnits lists the units of level whose parent is parentID.
func (c *Client) GeoUnits(ctx context.Context, level models.GeoLevel, parentID string) ([]models.GeoUnit, error) {
	ep, ok := geoEndpoints[level]
	if !ok {
		return nil, &chipapi.ValidationError{Field: "level", Message: "unknown geography level"}
	}
	dtos, err := c.list(ctx, ep, parentID)
	if err != nil {
		return nil, err
	}
	out := make([]models.GeoUnit, len(dtos))
	for i, d := range dtos {
		out[i] = models.GeoUnit{ID: string(d.ID), Name: d.Name, ParentID: parentID, Level: level}
	}
	return out, nil
}

// OrgUnits lists the units of kind whose parent is parentID.
func (c *Client) OrgUnits(ctx context.Context, kind models.OrgKind, parentID string) ([]models.OrgUnit, error) {
	ep, ok := orgEndpoints[kind]
	if !ok {
		return nil, &chipapi.ValidationError{Field: "kind", Message: "unknown organization level"}
	}
	dtos, err := c.list(ctx, ep, parentID)
	if err != nil {
		return nil, err
	}
	out := make([]models.OrgUnit, len(dtos))
	for i, d := range dtos {
		out[i] = models.OrgUnit{ID: string(d.ID), Name: d.Name, ParentID: parentID, Kind: kind}
	}
	return out, nil
}

func (c *Client) list(ctx context.Context, ep endpoint, parentID string) ([]unitDTO, error) {
	parentID = strings.TrimSpace(parentID)
	var q url.Values
	if ep.param != "" {
		if parentID == "" {
			return nil, &chipapi.ValidationError{Field: ep.param, Message: ep.param + " is required"}
		}
		q = url.Values{ep.param: {parentID}}
	}

	key := ep.path + "?" + q.Encode()
	if s := chipapi.SessionFrom(ctx); s != nil {
		// jars are per browser session; never share a request across them
		key += fmt.Sprintf("|%s|%p", s.Token, s.Jar)
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// Detached from the first caller so its cancellation does not fail
		// the callers sharing this flight.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Backend())
		defer cancel()
		var raw json.RawMessage
		if err := c.API.Get(fctx, ep.path, q, &raw); err != nil {
			return nil, err
		}
		return decodeUnits(c.validate, ep.path, raw)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, &chipapi.NetworkError{Method: http.MethodGet, URL: ep.path, Err: ctx.Err()}
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		c.Log.Debug("shared in-flight list request", zap.String("path", ep.path))
	}
	units := res.Val.([]unitDTO)
	// callers may hold on to the slice; never hand out the shared one
	return append([]unitDTO(nil), units...), nil
}
