package console

import (
	"fmt"

	"github.com/leapstack-labs/docdesk/internal/form"
	"github.com/leapstack-labs/docdesk/internal/listing"
	"github.com/leapstack-labs/docdesk/internal/ui/components"
	"github.com/leapstack-labs/docdesk/pkg/core"
	gomponents "maragu.dev/gomponents"
)

// Render builds the content element of the view.
func (v *View) Render() gomponents.Node {
	switch v.mode {
	case ModeList:
		return components.List(v.listView())
	case ModeBatch:
		return components.Batch(v.batchView())
	case ModeShow:
		return components.Show(v.showView())
	default:
		return components.Form(v.formView())
	}
}

// Title is the document title of the view.
func (v *View) Title() string {
	switch v.mode {
	case ModeAdd:
		return "Add " + v.res.Label
	case ModeBatch:
		return v.res.Label + " batch upload"
	case ModeShow, ModeEdit:
		if v.recordID != "" {
			return fmt.Sprintf("%s #%s", v.res.Label, v.recordID)
		}
	}
	return v.res.Label
}

func (v *View) tabItems() []components.TabItem {
	if v.shell == nil {
		return nil
	}
	active := v.shell.Active()
	items := make([]components.TabItem, 0, len(v.shell.Tabs()))
	for i, t := range v.shell.Tabs() {
		items = append(items, components.TabItem{Key: t.Key, Label: t.Label, Active: i == active})
	}
	return items
}

func (v *View) confirm() *components.Confirm {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pending == nil {
		return nil
	}
	return &components.Confirm{
		Title:       v.pending.Title,
		Message:     v.pending.Message,
		ConfirmText: v.pending.ConfirmText,
		Busy:        v.confirming,
	}
}

func (v *View) banners() (errText, notice string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.actionErr, v.notice
}

func (v *View) listView() components.ListView {
	st := v.list.State()
	sel := v.list.Selection()
	ids := v.list.RowIDs()

	out := components.ListView{
		ViewID:   v.id,
		Resource: v.res.Name,
		Label:    v.res.Label,
		Tabs:     v.tabItems(),
		Filters:  map[string]string{},
		Search:   v.query.SearchText(),
		Loading:  st.Status == listing.StatusLoading,
		Page:     st.Query.Page,
		LastPage: st.LastPage,
		PerPage:  st.Query.PerPage,
		Total:    st.Total,
		Selected: sel.Len(),
		Confirm:  v.confirm(),
	}
	out.AllSelected = len(ids) > 0 && sel.AllSelected(ids)

	actionErr, notice := v.banners()
	out.Notice = notice
	out.Error = actionErr
	if out.Error == "" && st.Err != nil {
		out.Error = st.Err.Error()
	}

	for _, c := range v.res.Columns {
		col := components.TableColumn{Header: c.Header}
		if c.HasFilter() {
			col.Filter = &components.FilterControl{Kind: c.Filter, Key: c.ResolvedFilterKey(), Placeholder: c.Header}
			for _, k := range c.FilterKeys() {
				out.Filters[k] = v.query.Filter(k)
			}
		}
		out.Columns = append(out.Columns, col)
	}

	for _, rec := range st.Rows {
		id := v.res.RecordID(rec)
		row := components.TableRow{ID: id, Selected: sel.Has(id), Cells: make([]string, len(v.res.Columns))}
		for i, c := range v.res.Columns {
			text, err := v.engine.Cell(c, rec)
			if err != nil {
				v.logger.Warn("failed to render cell", "column", c.Header, "id", id, "error", err)
				text = "!"
			}
			row.Cells[i] = text
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func (v *View) formView() components.FormView {
	rf := v.form
	f := rf.Form()
	out := components.FormView{
		ViewID:      v.id,
		Tabs:        v.tabItems(),
		Edit:        rf.Edit(),
		Loading:     rf.Loading(),
		SubmitError: f.Error(form.SubmitErrorKey),
	}
	if v.shell == nil {
		out.Title = v.Title()
	}
	if !v.res.Singleton {
		out.CancelHref = "/" + v.res.Name
	}
	if err := rf.LoadError(); err != nil {
		out.LoadError = err.Error()
		return out
	}

	rec := rf.Record()
	for _, field := range f.Fields() {
		value := f.Value(field.Name)
		fv := components.FieldView{
			Field:   field,
			Value:   core.DisplayValue(value),
			Error:   f.Error(field.Name),
			Visible: f.PasswordVisible(field.Name),
		}
		switch field.Kind {
		case core.FieldCheckbox, core.FieldToggle:
			fv.Checked, _ = value.(bool)
			fv.Value = ""
		case core.FieldFile:
			if fh, ok := value.(*core.FileHandle); ok && fh != nil {
				fv.FileName = fh.Name
			}
			fv.Value = ""
			if rec != nil {
				if doc, ok := rec[field.Name].(string); ok {
					fv.DocHref = v.docHref(doc)
				}
			}
		case core.FieldSelect:
			if sel, ok := f.Select(field.Name); ok {
				view := sel.View()
				fv.Combo = &view
			}
		}
		out.Fields = append(out.Fields, fv)
	}
	return out
}

func (v *View) batchView() components.BatchView {
	snap := v.batch.Snapshot()
	out := components.BatchView{
		ViewID:   v.id,
		Resource: v.res.Name,
		Tabs:     v.tabItems(),
		Status:   snap.Status,
		MaxFiles: snap.MaxFiles,
		Fields:   snap.Fields,
	}
	actionErr, _ := v.banners()
	out.Error = actionErr
	if snap.Err != nil {
		out.Error = snap.Err.Error()
	}
	for _, fh := range snap.Files {
		out.Files = append(out.Files, components.BatchFile{ID: fh.ID, Name: fh.Name, Size: fh.Size()})
	}
	for _, r := range snap.Records {
		row := components.BatchRow{
			Index:   r.Index,
			Values:  make(map[string]string, len(snap.Fields)),
			Folder:  r.Folder,
			DocName: docName(r.ExistingDoc),
			DocHref: v.docHref(r.ExistingDoc),
		}
		for _, f := range snap.Fields {
			row.Values[f.Name] = core.DisplayValue(r.Fields[f.Name])
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func (v *View) showView() components.ShowView {
	v.mu.Lock()
	rec, err := v.record, v.showErr
	v.mu.Unlock()

	out := components.ShowView{
		ViewID:   v.id,
		Title:    v.Title(),
		BackHref: "/" + v.res.Name,
		EditHref: "/" + v.res.Name + "/edit/" + v.recordID,
		CanEdit:  err == nil,
		Confirm:  v.confirm(),
	}
	actionErr, _ := v.banners()
	switch {
	case err != nil:
		out.Error = err.Error()
	case actionErr != "":
		out.Error = actionErr
	}

	if len(v.res.Fields) == 0 {
		for _, c := range v.res.Columns {
			text, cellErr := v.engine.Cell(c, rec)
			if cellErr != nil {
				text = "!"
			}
			out.Items = append(out.Items, components.DetailItem{Label: c.Header, Value: text})
		}
		return out
	}
	for _, f := range v.res.Fields {
		if f.Kind == core.FieldPasswordToggle {
			continue
		}
		item := components.DetailItem{Label: f.Label, Value: core.DisplayValue(rec[f.Name])}
		if f.Kind == core.FieldFile {
			if doc, ok := rec[f.Name].(string); ok && doc != "" {
				item.Value = docName(doc)
				item.Href = v.docHref(doc)
			}
		}
		out.Items = append(out.Items, item)
	}
	return out
}
