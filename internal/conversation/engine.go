// Package conversation routes inbound chat messages through the guided flows:
// property lookup by code, filtered search, seller onboarding, visit requests,
// fee simulation and the advisor handoff.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/catalog"
	"github.com/jkindrix/bluehome/internal/clock"
	"github.com/jkindrix/bluehome/internal/config"
	"github.com/jkindrix/bluehome/internal/domain"
	"github.com/jkindrix/bluehome/internal/fees"
	"github.com/jkindrix/bluehome/internal/llm"
	"github.com/jkindrix/bluehome/internal/messenger"
	"github.com/jkindrix/bluehome/internal/metrics"
)

// AnonymousSession is used when a message carries neither a contact id nor a name.
const AnonymousSession = "anon"

const defaultCompanyName = "Blue Home Inmobiliaria"

// DefaultNotifyTimeout bounds one background lead notification, retries included.
const DefaultNotifyTimeout = 30 * time.Second

// Catalog is the listing lookup the engine reads from.
type Catalog interface {
	FindByCode(ctx context.Context, code string) (*domain.Property, error)
	Search(ctx context.Context, filters domain.SearchFilters, limit int) ([]domain.Property, int, error)
}

// Inbound is one message from a contact.
type Inbound struct {
	SessionID string
	UserName  string
	Text      string
}

// Config tunes the engine.
type Config struct {
	Company config.CompanyConfig
	// Intents overrides DefaultPatterns by route name.
	Intents      map[string]string
	HistoryLimit int
	MaxResults   int
	// NotifyTimeout bounds a lead notification sent after the reply.
	NotifyTimeout time.Duration
}

// Deps are the engine collaborators. Catalog, Sessions, Leads and Logger are required.
type Deps struct {
	Catalog  Catalog
	Sessions domain.SessionStore
	Leads    domain.LeadRepository
	Notifier messenger.Notifier
	LLM      llm.Completer
	Fees     fees.Simulator
	Metrics  *metrics.Metrics
	Events   *metrics.BusinessEventLogger
	Clock    clock.Clock
	Logger   *zap.Logger
}

type stageHandler func(ctx context.Context, t *Turn) (*domain.Reply, bool)

// Engine is the conversation state machine.
type Engine struct {
	catalog  Catalog
	sessions domain.SessionStore
	leads    domain.LeadRepository
	notifier messenger.Notifier
	llm      llm.Completer
	fees     fees.Simulator
	metrics  *metrics.Metrics
	events   *metrics.BusinessEventLogger
	clock    clock.Clock
	logger   *zap.Logger

	company       config.CompanyConfig
	historyLimit  int
	maxResults    int
	notifyTimeout time.Duration
	notifying     sync.WaitGroup

	pre       []Route
	codeMatch *regexp.Regexp
	keywords  []Route
	stages    map[domain.Stage]stageHandler
	locks     *keyedMutex
}

// New builds an engine. It fails when a required dependency is missing or an
// intent override does not compile.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Logger == nil {
		panic("conversation: logger is required")
	}
	if deps.Catalog == nil || deps.Sessions == nil || deps.Leads == nil {
		return nil, errors.New("conversation: catalog, sessions and leads are required")
	}

	patterns, unknown, err := compilePatterns(cfg.Intents)
	if err != nil {
		return nil, fmt.Errorf("conversation: %w", err)
	}

	e := &Engine{
		catalog:      deps.Catalog,
		sessions:     deps.Sessions,
		leads:        deps.Leads,
		notifier:     deps.Notifier,
		llm:          deps.LLM,
		fees:         deps.Fees,
		metrics:      deps.Metrics,
		events:       deps.Events,
		clock:        deps.Clock,
		logger:       deps.Logger.Named("conversation"),
		company:       cfg.Company,
		historyLimit:  cfg.HistoryLimit,
		maxResults:    cfg.MaxResults,
		notifyTimeout: cfg.NotifyTimeout,
		codeMatch:     patterns["property_code"],
		locks:         newKeyedMutex(),
	}
	if e.notifyTimeout <= 0 {
		e.notifyTimeout = DefaultNotifyTimeout
	}
	if e.notifier == nil {
		e.notifier = messenger.Nop{}
	}
	if e.fees == (fees.Simulator{}) {
		e.fees = fees.NewSimulator(fees.DefaultAdminPercent, fees.DefaultVATPercent, fees.DefaultInsurancePercent)
	}
	if e.clock == nil {
		e.clock = clock.New()
	}
	if e.maxResults <= 0 {
		e.maxResults = catalog.DefaultLimit
	}
	if e.company.Name == "" {
		e.company.Name = defaultCompanyName
	}
	for _, name := range unknown {
		e.logger.Warn("ignoring override for unknown intent", zap.String("intent", name))
	}

	e.buildRoutes(patterns)
	return e, nil
}

func (e *Engine) buildRoutes(p map[string]*regexp.Regexp) {
	e.pre = []Route{
		{Name: "reset", Intent: IntentReset, Match: p["reset"], Handle: e.handleReset},
		{Name: "property_code", Intent: IntentPropertyCode, Match: p["property_code"], Handle: e.handlePropertyCode},
	}

	c := e.company
	e.keywords = []Route{
		{Name: "request_code", Intent: IntentRequestCode, Match: p["request_code"], Handle: e.handleRequestCode},
		{Name: "seller", Intent: IntentSeller, Match: p["seller"], Handle: e.handleSeller},
		{Name: "search_filters", Intent: IntentSearchFilters, Match: p["search_filters"], Handle: e.handleSearchFilters},
		{Name: "more_options", Intent: IntentMoreOptions, Match: p["more_options"], Handle: e.handleMoreOptions},
		{Name: "widen_budget", Intent: IntentWidenBudget, Match: p["widen_budget"], Handle: e.handleWidenBudget},
		{Name: "change_type", Intent: IntentChangeType, Match: p["change_type"], Handle: e.handleChangeType},
		{Name: "schedule_visit", Intent: IntentScheduleVisit, Match: p["schedule_visit"], Handle: e.handleScheduleVisit},
		{Name: "fee_simulation", Intent: IntentFeeSimulation, Match: p["fee_simulation"], Handle: e.handleFeeSimulation},
		{Name: "advisor", Intent: IntentAdvisor, Match: p["advisor"], Handle: e.handleAdvisor},
		{Name: "company_hours", Intent: IntentCompanyInfo, Match: p["company_hours"], Handle: e.companyInfo(c.Hours, msgCompanyHours)},
		{Name: "company_address", Intent: IntentCompanyInfo, Match: p["company_address"], Handle: e.companyInfo(c.Address, msgCompanyAddress)},
		{Name: "company_phone", Intent: IntentCompanyInfo, Match: p["company_phone"], Handle: e.companyInfo(c.Phone, msgCompanyPhone)},
		{Name: "company_about", Intent: IntentCompanyInfo, Match: p["company_about"], Handle: e.companyInfo(c.About, "%s")},
		{Name: "company_website", Intent: IntentCompanyInfo, Match: p["company_website"], Handle: e.companyInfo(c.Website, msgCompanyWebsite)},
		{Name: "menu", Intent: IntentMenu, Match: p["menu"], Handle: e.handleMenu},
	}

	e.stages = map[domain.Stage]stageHandler{
		domain.StageMenu:           e.menuStage,
		domain.StageAwaitingType:   e.filterStage,
		domain.StageAwaitingBudget: e.filterStage,
		domain.StageAwaitingRooms:  e.filterStage,
		domain.StageSellerName:     e.sellerStage,
		domain.StageSellerPhone:    e.sellerStage,
		domain.StageSellerAddress:  e.sellerStage,
		domain.StageSellerType:     e.sellerStage,
		domain.StageSellerPrice:    e.sellerStage,
		domain.StageVisitContact:   e.visitStage,
		domain.StageFeeAmount:      e.feeStage,
	}
}

// ResolveSessionID picks the contact id, then the user name, then AnonymousSession.
func ResolveSessionID(contactID, userName string) string {
	if id := strings.TrimSpace(contactID); id != "" {
		return id
	}
	if name := strings.TrimSpace(userName); name != "" {
		return name
	}
	return AnonymousSession
}

// Handle answers one inbound message. Messages for the same session are
// handled one at a time. Session persistence is best effort: a store failure
// is logged and counted but the reply is still returned.
func (e *Engine) Handle(ctx context.Context, in Inbound) (*domain.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := ResolveSessionID(in.SessionID, in.UserName)
	unlock := e.locks.Lock(id)
	defer unlock()

	sess := e.loadSession(ctx, id, strings.TrimSpace(in.UserName))
	text := strings.TrimSpace(in.Text)
	t := &Turn{Session: sess, Text: text, Folded: catalog.Fold(text)}

	reply := e.route(ctx, t)
	reply.SessionID = id

	sess.UpdatedAt = e.clock.Now()
	e.saveSession(ctx, sess)
	e.metrics.RecordMessage(reply.Intent)

	e.logger.Debug("message handled",
		zap.String("session_id", id),
		zap.String("intent", reply.Intent),
		zap.String("stage", string(sess.Stage)),
	)
	return reply, nil
}

// route evaluates, in order: reset, property code, the active stage, keyword
// intents, the LLM and the canned fallback.
func (e *Engine) route(ctx context.Context, t *Turn) *domain.Reply {
	for i := range e.pre {
		if e.pre[i].Match.MatchString(t.Folded) {
			return e.pre[i].Handle(ctx, t)
		}
	}
	if t.Session.Stage == domain.StageAwaitingCode && bareCode.MatchString(t.Folded) {
		return e.handlePropertyCode(ctx, t)
	}

	t.Keyword = match(e.keywords, t.Folded)

	if h, ok := e.stages[t.Session.Stage]; ok {
		if reply, handled := h(ctx, t); handled {
			return reply
		}
		t.Session.Stage = domain.StageIdle
	}

	if t.Keyword != nil {
		return t.Keyword.Handle(ctx, t)
	}
	if reply := e.askLLM(ctx, t); reply != nil {
		return reply
	}
	return e.handleFallback(t)
}

func (e *Engine) loadSession(ctx context.Context, id, userName string) *domain.Session {
	sess, err := e.sessions.Get(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSessionNotFound):
		sess = domain.NewSession(id, userName)
	default:
		e.metrics.RecordSessionStoreError("get")
		e.logger.Warn("failed to load session, starting fresh",
			zap.String("session_id", id),
			zap.Error(err),
		)
		sess = domain.NewSession(id, userName)
	}
	if userName != "" {
		sess.UserName = userName
	}
	return sess
}

func (e *Engine) saveSession(ctx context.Context, sess *domain.Session) {
	if err := e.sessions.Save(ctx, sess); err != nil {
		e.metrics.RecordSessionStoreError("save")
		e.logger.Warn("failed to save session",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}
}

// captureLead stores the lead and notifies advisors in the background, so
// the reply does not wait on outbound delivery. A storage failure still
// notifies so the contact is not lost.
func (e *Engine) captureLead(ctx context.Context, lead *domain.Lead) {
	if err := e.leads.Create(ctx, lead); err != nil {
		e.logger.Error("failed to store lead",
			zap.String("lead_id", lead.ID.String()),
			zap.String("kind", string(lead.Kind)),
			zap.Error(err),
		)
	} else {
		e.metrics.RecordLead(string(lead.Kind))
		e.events.LeadCaptured(ctx, lead.ID, string(lead.Kind), lead.SessionID, lead.Phone, lead.PropertyCode)
	}

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.notifyTimeout)
	e.notifying.Add(1)
	go func() {
		defer e.notifying.Done()
		defer cancel()
		if err := e.notifier.NotifyLead(nctx, lead); err != nil {
			e.logger.Warn("lead notification incomplete",
				zap.String("lead_id", lead.ID.String()),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until pending lead notifications finish or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.notifying.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pending lead notifications: %w", ctx.Err())
	}
}

func (e *Engine) askLLM(ctx context.Context, t *Turn) *domain.Reply {
	if e.llm == nil || t.Text == "" {
		return nil
	}
	answer, err := e.llm.Complete(ctx, t.Session.History, t.Text)
	if err != nil {
		if !errors.Is(err, llm.ErrDisabled) {
			e.logger.Warn("llm fallback failed", zap.String("session_id", t.Session.ID), zap.Error(err))
		}
		return nil
	}

	t.Session.AppendHistory(e.historyLimit,
		domain.ChatMessage{Role: domain.RoleUser, Content: t.Text},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: answer},
	)
	t.Session.Stage = domain.StageIdle
	return newReply(IntentLLMFallback, qrFallback, answer)
}

func newReply(intent string, quick []string, msgs ...string) *domain.Reply {
	r := &domain.Reply{Intent: intent, Messages: msgs}
	if len(quick) > 0 {
		r.QuickReplies = append([]string(nil), quick...)
	}
	return r
}
