package dashboard

import (
	"github.com/dalemusser/chipdash/internal/app/system/selection"
	"github.com/dalemusser/chipdash/internal/domain/models"
)

var levelLabels = map[string]string{
	"state":        "State",
	"division":     "Division",
	"district":     "District",
	"block":        "Block",
	"sector":       "Sector",
	"orgtype":      "Organization type",
	"organization": "Organization",
	"designation":  "Designation",
}

// levelVM is one <select> of the selector panel.
type levelVM struct {
	Chain    string
	Name     string
	Label    string
	Options  []selection.Option
	Selected string
	Loading  bool
	// Disabled is set while the parent level has no selection.
	Disabled bool
	Error    string
}

type panelVM struct {
	CSRFToken string
	Geo       []levelVM
	Org       []levelVM
	Error     string
}

func newPanel(st selection.State, csrfToken string) panelVM {
	p := panelVM{CSRFToken: csrfToken}
	for _, l := range models.GeoLevels {
		p.Geo = append(p.Geo, levelView(st, selection.GeoSlot(l)))
	}
	for _, k := range models.OrgKinds {
		p.Org = append(p.Org, levelView(st, selection.OrgSlot(k)))
	}
	return p
}

func levelView(st selection.State, slot selection.Slot) levelVM {
	lv := st.Level(slot)
	root := slot == selection.GeoSlot(models.LevelState)
	return levelVM{
		Chain:    slot.Chain.String(),
		Name:     slot.Name(),
		Label:    levelLabels[slot.Name()],
		Options:  lv.Options,
		Selected: lv.Selected,
		Loading:  lv.Loading(),
		Disabled: !root && st.ParentOf(slot) == "",
		Error:    lv.Err,
	}
}
