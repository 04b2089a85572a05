package tui

import (
	"context"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/ringcore/internal/tui/client"
	"github.com/matheus3301/ringcore/internal/tui/keys"
	"github.com/matheus3301/ringcore/internal/tui/model"
	"github.com/matheus3301/ringcore/internal/tui/ui"
	"github.com/matheus3301/ringcore/internal/tui/views"
)

const (
	pageConversations = "conversations"
	pageThread        = "thread"
	pageInfo          = "info"
	pageCalls         = "calls"
	pageRequests      = "requests"
	pageSearch        = "search"
	pageShare         = "share"
	pageHelp          = "help"

	rpcTimeout   = 10 * time.Second
	tickInterval = 5 * time.Second
	watchRetry   = 2 * time.Second
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	vm       *model.ViewModel
	registry *keys.Registry
	flash    *ui.FlashModel
	profile  string

	root       *tview.Flex
	pages      *ui.Pages
	info       *ui.ProfileInfo
	menu       *ui.Menu
	crumbs     *ui.Crumbs
	prompt     *ui.Prompt
	flashBar   *ui.FlashBar
	components map[string]ui.Component

	convList *views.ConversationList
	thread   *views.MessageThread
	convInfo *views.ConversationInfo
	calls    *views.CallsView
	requests *views.RequestsView
	search   *views.SearchView
	share    *views.ShareView
	help     *views.HelpView

	promptActive bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application for a profile's engine host.
func NewApp(c *client.Client, profile string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		theme:    theme,
		vm:       model.NewViewModel(c),
		registry: keys.NewRegistry(),
		flash:    ui.NewFlashModel(),
		profile:  profile,
		pages:    ui.NewPages(),
		info:     ui.NewProfileInfo(theme),
		menu:     ui.NewMenu(theme),
		crumbs:   ui.NewCrumbs(theme),
		prompt:   ui.NewPrompt(theme),
		flashBar: ui.NewFlashBar(theme),
		convList: views.NewConversationList(theme),
		thread:   views.NewMessageThread(theme),
		convInfo: views.NewConversationInfo(theme),
		calls:    views.NewCallsView(theme),
		requests: views.NewRequestsView(theme),
		search:   views.NewSearchView(theme),
		share:    views.NewShareView(theme),
		help:     views.NewHelpView(theme),
		ctx:      ctx,
		cancel:   cancel,
	}

	a.setupLayout()
	a.setupBindings()
	a.setupCallbacks()

	a.pages.Reset(pageConversations)
	a.app.SetFocus(a.convList)
	return a
}

func (a *App) setupLayout() {
	a.components = map[string]ui.Component{
		pageConversations: a.convList,
		pageThread:        a.thread,
		pageInfo:          a.convInfo,
		pageCalls:         a.calls,
		pageRequests:      a.requests,
		pageSearch:        a.search,
		pageShare:         a.share,
		pageHelp:          a.help,
	}
	a.pages.AddPage(pageConversations, a.convList, true, false)
	a.pages.AddPage(pageThread, a.thread, true, false)
	a.pages.AddPage(pageInfo, a.convInfo, true, false)
	a.pages.AddPage(pageCalls, a.calls, true, false)
	a.pages.AddPage(pageRequests, a.requests, true, false)
	a.pages.AddPage(pageSearch, a.search, true, false)
	a.pages.AddPage(pageShare, a.share, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)

	header := tview.NewFlex().
		AddItem(a.info, 0, 2, false).
		AddItem(a.menu, 0, 3, false).
		AddItem(ui.NewLogo(a.theme), 18, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)

	a.crumbs.SetTitler(func(page string) string {
		if c, ok := a.components[page]; ok {
			return c.Name()
		}
		return page
	})
	a.pages.SetOnChange(func(stack []string) {
		a.crumbs.Update(stack)
		if len(stack) > 0 {
			a.menu.Update(a.hints(stack[len(stack)-1]))
		}
	})

	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) hints(page string) []ui.MenuHint {
	hints := a.registry.Hints(page)
	if c, ok := a.components[page]; ok {
		hints = append(c.Hints(), hints...)
	}
	return hints
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(keys.Rune('q', "Quit", a.Stop))
	a.registry.AddGlobal(keys.Rune('?', "Help", func() { a.show(pageHelp, a.help) }))
	a.registry.AddGlobal(keys.Rune('c', "Calls", a.showCalls))
	a.registry.AddGlobal(keys.Rune('r', "Requests", a.showRequests))
	a.registry.AddGlobal(keys.Rune('S', "Share", a.showShare))

	a.registry.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyEnter, Label: "Enter", Help: "Open", Visible: true,
		Handler: func() {
			if key := a.convList.SelectedKey(); key != "" {
				a.openConversation(key)
			}
		},
	})
	a.registry.AddView(pageConversations, keys.Rune('0', "Clear filter", a.convList.ClearFilter))

	a.registry.AddView(pageThread, keys.Rune('i', "Compose", func() { a.app.SetFocus(a.thread.Composer()) }))
	a.registry.AddView(pageThread, keys.Rune('d', "Details", a.showInfo))
	a.registry.AddView(pageThread, keys.Rune('p', "Call", a.callActive))
	a.registry.AddView(pageThread, keys.Rune('L', "Older", func() {
		a.run("load history", a.vm.LoadOlder)
	}))

	a.registry.AddView(pageCalls, keys.Rune('a', "Accept", a.callAction("Accept")))
	a.registry.AddView(pageCalls, keys.Rune('x', "Refuse", a.callAction("Refuse")))
	a.registry.AddView(pageCalls, keys.Rune('h', "Hang up", a.callAction("HangUp")))
	a.registry.AddView(pageCalls, keys.Rune('o', "Hold", a.toggleHold))
	a.registry.AddView(pageCalls, keys.Rune('m', "Mute", a.toggleMute("audio")))
	a.registry.AddView(pageCalls, keys.Rune('v', "Video", a.toggleMute("video")))

	a.registry.AddView(pageRequests, keys.Rune('a', "Accept", a.answerRequest(true)))
	a.registry.AddView(pageRequests, keys.Rune('x', "Discard", a.answerRequest(false)))
}

func (a *App) setupCallbacks() {
	a.thread.SetOnSend(func(text string) {
		a.run("send", func(ctx context.Context) error {
			return a.vm.SendText(ctx, text)
		})
	})

	a.search.SetOnQuery(a.runSearch)
	a.search.Results().SetSelectedFunc(func(int, int) {
		if hit, ok := a.search.Selected(); ok {
			if hit.Account != "" && hit.Account != a.vm.ActiveAccount() {
				a.vm.SwitchAccount(hit.Account)
			}
			a.openConversation(hit.Conversation)
		}
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptFilter:
			a.convList.SetFilter(text)
		case ui.PromptCommand:
			a.execute(ParseCommand(text))
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)
}

func (a *App) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	if a.promptActive {
		return ev
	}
	current := a.pages.Current()

	if ev.Key() == tcell.KeyEscape {
		switch {
		case a.app.GetFocus() == a.thread.Composer():
			a.app.SetFocus(a.thread.Messages())
		case current == pageConversations:
			a.convList.ClearFilter()
		default:
			a.back()
		}
		return nil
	}

	// Let text input widgets handle all keys normally.
	if _, ok := a.app.GetFocus().(*tview.InputField); ok {
		return ev
	}

	if ev.Key() == tcell.KeyRune {
		switch r := ev.Rune(); {
		case r == ':':
			a.showPrompt(ui.PromptCommand)
			return nil
		case r == '/' && current == pageConversations:
			a.showPrompt(ui.PromptFilter)
			return nil
		case r >= '1' && r <= '9' && current == pageConversations:
			n, _ := strconv.Atoi(string(r))
			if key := a.convList.KeyByIndex(n); key != "" {
				a.openConversation(key)
			}
			return nil
		}
	}

	if a.registry.HandleEvent(current, ev) {
		return nil
	}
	return ev
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.promptActive = true
	a.prompt.Activate(mode)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.promptActive = false
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusCurrent()
}

func (a *App) execute(cmd Command) {
	switch cmd.Name {
	case "quit":
		a.Stop()
	case "help":
		a.show(pageHelp, a.help)
	case "search":
		a.search.SetQuery(cmd.Args)
		a.show(pageSearch, a.search.Input())
		if cmd.Args != "" {
			a.runSearch(cmd.Args)
		}
	case "open":
		c, ok := a.vm.FindConversation(cmd.Args)
		if !ok {
			a.flash.Warn("no conversation matches " + cmd.Args)
			return
		}
		a.openConversation(c.Key)
	case "call":
		if cmd.Args == "" {
			a.callActive()
			return
		}
		a.placeCall(cmd.Args)
	case "add":
		if cmd.Args == "" {
			a.flash.Warn("usage: add <uri>")
			return
		}
		a.run("add contact", func(ctx context.Context) error {
			return a.vm.AddContact(ctx, cmd.Args)
		})
	case "account":
		if !a.vm.SwitchAccount(cmd.Args) {
			a.flash.Warn("unknown account " + cmd.Args)
			return
		}
		a.pages.Reset(pageConversations)
		a.focusCurrent()
		go a.refresh()
	case "calls":
		a.showCalls()
	case "requests":
		a.showRequests()
	case "share":
		a.showShare()
	default:
		a.flash.Warn("unknown command: " + cmd.Name)
	}
}

func (a *App) runSearch(q string) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		hits, err := a.vm.Search(ctx, q)
		if err != nil {
			a.flash.Err("search", err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.search.Update(hits)
			a.app.SetFocus(a.search.Results())
		})
	}()
}

// show raises page and focuses p.
func (a *App) show(page string, p tview.Primitive) {
	a.pages.Raise(page)
	a.app.SetFocus(p)
}

func (a *App) back() {
	if a.pages.Depth() <= 1 {
		return
	}
	if a.pages.Pop() == pageThread {
		go func() {
			ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
			defer cancel()
			a.vm.CloseConversation(ctx)
		}()
	}
	a.focusCurrent()
}

func (a *App) focusCurrent() {
	switch a.pages.Current() {
	case pageThread:
		a.app.SetFocus(a.thread.Messages())
	case pageSearch:
		a.app.SetFocus(a.search.Input())
	default:
		if c, ok := a.components[a.pages.Current()]; ok {
			if p, ok := c.(tview.Primitive); ok {
				a.app.SetFocus(p)
			}
		}
	}
}

func (a *App) openConversation(key string) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		if err := a.vm.OpenConversation(ctx, key); err != nil {
			a.flash.Err("open", err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			if c, ok := a.vm.Conversation(key); ok {
				a.thread.SetTitle(c.Name())
			} else {
				a.thread.SetTitle(key)
			}
			a.renderThread()
			a.pages.Raise(pageConversations)
			a.show(pageThread, a.thread.Messages())
		})
	}()
}

func (a *App) showInfo() {
	c, ok := a.vm.Conversation(a.vm.ActiveKey())
	if !ok {
		return
	}
	a.convInfo.Update(c)
	a.show(pageInfo, a.convInfo)
}

func (a *App) showCalls() {
	a.calls.Update(a.vm.Calls())
	a.show(pageCalls, a.calls)
}

func (a *App) showRequests() {
	a.requests.Update(a.vm.Requests())
	a.show(pageRequests, a.requests)
}

func (a *App) showShare() {
	acc, _ := a.vm.Account()
	a.share.ShowAccount(acc.URI, acc.Registration)
	a.show(pageShare, a.share)
}

// callActive calls the open conversation. Swarms with several members
// are not called directly.
func (a *App) callActive() {
	c, ok := a.vm.Conversation(a.vm.ActiveKey())
	if !ok {
		return
	}
	target := c.Key
	if c.Swarm {
		acc, _ := a.vm.Account()
		target = ""
		for _, m := range c.Members {
			if m != acc.URI {
				if target != "" {
					a.flash.Warn("group calls are started from the daemon")
					return
				}
				target = m
			}
		}
	}
	if target == "" {
		return
	}
	a.placeCall(target)
}

func (a *App) placeCall(uri string) {
	a.run("call", func(ctx context.Context) error {
		_, err := a.vm.PlaceCall(ctx, uri)
		if err == nil {
			a.flash.Info("calling " + uri)
		}
		return err
	})
}

func (a *App) callAction(method string) func() {
	return func() {
		c, ok := a.calls.Selected()
		if !ok {
			return
		}
		a.run(method, func(ctx context.Context) error {
			return a.vm.CallAction(ctx, method, c.ID)
		})
	}
}

func (a *App) toggleHold() {
	c, ok := a.calls.Selected()
	if !ok {
		return
	}
	method := "Hold"
	if c.OnHold() {
		method = "Unhold"
	}
	a.run(method, func(ctx context.Context) error {
		return a.vm.CallAction(ctx, method, c.ID)
	})
}

func (a *App) toggleMute(media string) func() {
	return func() {
		c, ok := a.calls.Selected()
		if !ok {
			return
		}
		muted := c.AudioMuted
		if media == "video" {
			muted = c.VideoMuted
		}
		a.run("mute", func(ctx context.Context) error {
			return a.vm.Mute(ctx, c.ID, media, !muted)
		})
	}
}

func (a *App) answerRequest(accept bool) func() {
	return func() {
		r, ok := a.requests.Selected()
		if !ok {
			return
		}
		a.run("request", func(ctx context.Context) error {
			return a.vm.AnswerRequest(ctx, r.From, accept)
		})
	}
}

// run executes fn off the UI goroutine, reporting failures in the flash
// bar, then refreshes.
func (a *App) run(what string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			a.flash.Err(what, err)
		}
		a.refresh()
	}()
}

// refresh reloads everything from the host and redraws.
func (a *App) refresh() {
	ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
	defer cancel()

	if err := a.vm.LoadStatus(ctx); err != nil {
		a.flash.Err("status", err)
	}
	_ = a.vm.LoadAccounts(ctx)
	_ = a.vm.LoadContacts(ctx)
	_ = a.vm.LoadConversations(ctx)
	_ = a.vm.LoadThread(ctx)
	_ = a.vm.LoadCalls(ctx)
	_ = a.vm.LoadRequests(ctx)

	a.app.QueueUpdateDraw(a.render)
}

func (a *App) render() {
	st := a.vm.Status()
	acc, _ := a.vm.Account()
	a.info.Update(&ui.ProfileData{
		Profile:       a.profile,
		Account:       acc.URI,
		Registration:  acc.Registration,
		Status:        st.State,
		Conversations: acc.Conversations,
		Unread:        acc.Unread,
		Calls:         len(a.vm.Calls()),
		Uptime:        st.Uptime,
	})
	a.convList.Update(a.vm.Conversations())
	switch a.pages.Current() {
	case pageThread:
		a.renderThread()
	case pageCalls:
		a.calls.Update(a.vm.Calls())
	case pageRequests:
		a.requests.Update(a.vm.Requests())
	}
	a.flashBar.Update(a.flash.Current())
}

func (a *App) renderThread() {
	items, more := a.vm.Thread()
	a.thread.Update(items, more, a.vm.DisplayName)
}

// Run starts the TUI application.
func (a *App) Run() error {
	go a.refresh()
	go a.watch()
	go a.tick()
	return a.app.Run()
}

// watch follows the host's events, reconnecting the stream until the app
// stops.
func (a *App) watch() {
	go func() {
		for {
			select {
			case <-a.vm.RefreshCh():
				a.refresh()
			case <-a.ctx.Done():
				return
			}
		}
	}()
	for {
		err := a.vm.Watch(a.ctx)
		if a.ctx.Err() != nil {
			return
		}
		a.flash.Err("event stream", err)
		select {
		case <-time.After(watchRetry):
		case <-a.ctx.Done():
			return
		}
	}
}

// tick keeps uptime and flash expiry current between events.
func (a *App) tick() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.refresh()
		case msg := <-a.flash.Watch():
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(&msg) })
		case <-a.ctx.Done():
			return
		}
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
