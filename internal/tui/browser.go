// Package tui is a terminal browser for one resource list. It drives the
// same list orchestrator, query controller and delete pipeline as the web
// console.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/docdesk/internal/bulk"
	"github.com/leapstack-labs/docdesk/internal/client"
	"github.com/leapstack-labs/docdesk/internal/listing"
	"github.com/leapstack-labs/docdesk/internal/query"
	"github.com/leapstack-labs/docdesk/internal/script"
	"github.com/leapstack-labs/docdesk/pkg/core"
)

const (
	maxColumnWidth = 32
	markerWidth    = 3
	chromeHeight   = 9
)

// Config configures a Browser.
type Config struct {
	Resource *core.Resource
	Client   client.Resources
	Engine   *script.Engine
	Logger   *slog.Logger
	Debounce time.Duration
	// AfterFunc replaces the debounce clock, mainly in tests
	AfterFunc query.AfterFunc
}

type (
	queryMsg     core.Query
	loadedMsg    struct{}
	confirmedMsg struct{ err error }
)

// Browser is the bubbletea model of the list browser.
type Browser struct {
	res    *core.Resource
	client client.Resources
	engine *script.Engine
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	page       *listing.Page
	query      *query.Controller
	queries    chan core.Query
	dispatcher *bulk.Dispatcher
	deregister func()
	pending    *bulk.Confirmation

	table     table.Model
	search    textinput.Model
	spinner   spinner.Model
	searching bool
	notice    string
	err       error
	height    int
	quitting  bool
}

// New creates a browser. Call Close when the program exits.
func New(cfg Config) *Browser {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	engine := cfg.Engine
	if engine == nil {
		engine = script.NewEngine(script.WithLogger(logger))
	}
	ctx, cancel := context.WithCancel(context.Background())

	b := &Browser{
		res:        cfg.Resource,
		client:     cfg.Client,
		engine:     engine,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		queries:    make(chan core.Query, 1),
		dispatcher: bulk.NewDispatcher(logger),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		height:     20,
	}
	b.page = listing.New(listing.Config{
		Resource: cfg.Resource,
		Fetch: func(ctx context.Context, q core.Query) (core.Result, error) {
			return cfg.Client.List(ctx, cfg.Resource, q)
		},
		Logger: logger,
	})
	b.query = query.New(query.Config{
		PerPage:   cfg.Resource.PerPage,
		Debounce:  cfg.Debounce,
		AfterFunc: cfg.AfterFunc,
		OnQuery:   b.pushQuery,
	})
	b.deregister = b.dispatcher.Register(func(c bulk.Confirmation) {
		b.pending = &c
	})

	b.search = textinput.New()
	b.search.Placeholder = "Search " + cfg.Resource.Label
	b.search.Prompt = "/ "

	b.table = table.New(
		table.WithColumns(b.columns(nil)),
		table.WithFocused(true),
		table.WithHeight(b.height-chromeHeight),
	)
	return b
}

// Close cancels in-flight loads and the debounce timer.
func (b *Browser) Close() {
	b.query.Close()
	b.deregister()
	b.cancel()
}

// pushQuery hands the newest query to the program, replacing one not yet
// picked up.
func (b *Browser) pushQuery(q core.Query) {
	for {
		select {
		case b.queries <- q:
			return
		default:
			select {
			case <-b.queries:
			default:
			}
		}
	}
}

func (b *Browser) waitForQuery() tea.Cmd {
	return func() tea.Msg {
		select {
		case q := <-b.queries:
			return queryMsg(q)
		case <-b.ctx.Done():
			return nil
		}
	}
}

func (b *Browser) load(q core.Query) tea.Cmd {
	return func() tea.Msg {
		b.page.Load(b.ctx, q)
		return loadedMsg{}
	}
}

// Init implements tea.Model.
func (b *Browser) Init() tea.Cmd {
	return tea.Batch(b.spinner.Tick, b.load(b.query.Effective()), b.waitForQuery())
}

// Update implements tea.Model.
func (b *Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.height = msg.Height
		b.table.SetHeight(max(msg.Height-chromeHeight, 3))
		b.table.SetWidth(msg.Width)
		return b, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		b.spinner, cmd = b.spinner.Update(msg)
		return b, cmd

	case queryMsg:
		return b, tea.Batch(b.load(core.Query(msg)), b.waitForQuery())

	case loadedMsg:
		b.refresh()
		return b, nil

	case confirmedMsg:
		b.pending = nil
		if msg.err != nil {
			b.err = msg.err
		} else {
			b.notice = "Deleted."
		}
		b.refresh()
		return b, nil

	case tea.KeyMsg:
		return b.handleKey(msg)
	}
	return b, nil
}

func (b *Browser) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return b.quit()
	}

	if b.pending != nil {
		switch key {
		case "y", "enter":
			c := *b.pending
			return b, func() tea.Msg {
				return confirmedMsg{err: c.OnConfirm(b.ctx)}
			}
		case "n", "esc":
			b.pending = nil
		}
		return b, nil
	}

	if b.searching {
		switch key {
		case "esc", "enter":
			b.searching = false
			b.search.Blur()
			b.table.Focus()
			return b, nil
		}
		var cmd tea.Cmd
		b.search, cmd = b.search.Update(msg)
		b.query.SetSearchText(b.search.Value())
		return b, cmd
	}

	st := b.page.State()
	switch key {
	case "q":
		return b.quit()
	case "/":
		b.searching = true
		b.table.Blur()
		return b, b.search.Focus()
	case "right", "n":
		if st.Query.Page < st.LastPage {
			b.query.SetPage(st.Query.Page + 1)
		}
		return b, nil
	case "left", "p":
		if st.Query.Page > 1 {
			b.query.SetPage(st.Query.Page - 1)
		}
		return b, nil
	case " ":
		if id := b.currentID(); id != "" {
			b.page.Toggle(id)
			b.refresh()
		}
		return b, nil
	case "a":
		b.page.ToggleAll()
		b.refresh()
		return b, nil
	case "d":
		b.requestDelete()
		return b, nil
	case "r":
		b.notice, b.err = "", nil
		return b, b.load(b.query.Effective())
	case "x":
		b.search.SetValue("")
		b.query.ClearFilters()
		return b, nil
	}

	var cmd tea.Cmd
	b.table, cmd = b.table.Update(msg)
	return b, cmd
}

func (b *Browser) quit() (tea.Model, tea.Cmd) {
	b.quitting = true
	b.Close()
	return b, tea.Quit
}

// requestDelete asks to delete the selection, or the row under the cursor
// when nothing is selected.
func (b *Browser) requestDelete() {
	ids := b.page.Selection().IDs()
	if len(ids) == 0 {
		if id := b.currentID(); id != "" {
			ids = []string{id}
		}
	}
	if len(ids) == 0 {
		return
	}
	del := func(ctx context.Context, ids []string) error {
		var err error
		if len(ids) == 1 {
			err = b.client.Delete(ctx, b.res, ids[0])
		} else {
			err = b.client.BulkDelete(ctx, b.res, ids)
		}
		if err != nil {
			return err
		}
		b.page.OnDeleted(ids...)
		b.page.Refresh(ctx)
		return nil
	}
	if err := b.dispatcher.Request(bulk.DeleteConfirmation(b.res.Label, ids, del)); err != nil {
		b.err = err
	}
}

func (b *Browser) currentID() string {
	ids := b.page.RowIDs()
	i := b.table.Cursor()
	if i < 0 || i >= len(ids) {
		return ""
	}
	return ids[i]
}

// refresh rebuilds the table rows from the page state.
func (b *Browser) refresh() {
	st := b.page.State()
	sel := b.page.Selection()
	rows := make([]table.Row, 0, len(st.Rows))
	for _, rec := range st.Rows {
		marker := ""
		if sel.Has(b.res.RecordID(rec)) {
			marker = "✓"
		}
		row := table.Row{marker}
		for _, col := range b.res.Columns {
			cell, err := b.engine.Cell(col, rec)
			if err != nil {
				b.logger.Debug("cell render failed", "column", col.Header, "error", err)
				cell = "!"
			}
			row = append(row, cell)
		}
		rows = append(rows, row)
	}
	b.table.SetColumns(b.columns(rows))
	b.table.SetRows(rows)
	if b.table.Cursor() >= len(rows) {
		b.table.SetCursor(max(len(rows)-1, 0))
	}
}

func (b *Browser) columns(rows []table.Row) []table.Column {
	cols := []table.Column{{Title: "", Width: markerWidth}}
	for i, c := range b.res.Columns {
		w := lipgloss.Width(c.Header)
		for _, r := range rows {
			w = max(w, lipgloss.Width(r[i+1]))
		}
		cols = append(cols, table.Column{Title: c.Header, Width: min(w, maxColumnWidth)})
	}
	return cols
}

// View implements tea.Model.
func (b *Browser) View() string {
	if b.quitting {
		return ""
	}
	st := b.page.State()

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(b.res.Label))
	sb.WriteString("\n")
	sb.WriteString(b.search.View())
	sb.WriteString("\n")

	if st.Status == listing.StatusLoading && len(st.Rows) == 0 {
		sb.WriteString(b.spinner.View() + " Loading…\n")
	} else if len(st.Rows) == 0 {
		sb.WriteString(statusStyle.Render("No records found.") + "\n")
	} else {
		sb.WriteString(tableStyle.Render(b.table.View()))
		sb.WriteString("\n")
	}

	status := fmt.Sprintf("page %d of %d · %d total", st.Query.Page, max(st.LastPage, 1), st.Total)
	if n := b.page.Selection().Len(); n > 0 {
		status += fmt.Sprintf(" · %d selected", n)
	}
	if st.Status == listing.StatusLoading {
		status += " · " + b.spinner.View()
	}
	sb.WriteString(statusStyle.Render(status))
	sb.WriteString("\n")

	switch {
	case b.err != nil:
		sb.WriteString(errorStyle.Render(b.err.Error()) + "\n")
	case st.Err != nil:
		sb.WriteString(errorStyle.Render(st.Err.Error()) + "\n")
	case b.notice != "":
		sb.WriteString(noticeStyle.Render(b.notice) + "\n")
	}

	if b.pending != nil {
		sb.WriteString(confirmStyle.Render(fmt.Sprintf("%s\n%s\n[y] %s  [n] Cancel",
			b.pending.Title, b.pending.Message, b.pending.ConfirmText)))
		sb.WriteString("\n")
	}

	sb.WriteString(helpStyle.Render("/ search · ←/→ page · space select · a all · d delete · x clear · r reload · q quit"))
	return sb.String()
}

// Run starts the browser program and blocks until the user quits.
func Run(ctx context.Context, cfg Config, opts ...tea.ProgramOption) error {
	b := New(cfg)
	defer b.Close()
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	_, err := tea.NewProgram(b, opts...).Run()
	return err
}
