package conversation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/catalog"
	"github.com/jkindrix/bluehome/internal/domain"
	apperrors "github.com/jkindrix/bluehome/internal/errors"
	"github.com/jkindrix/bluehome/internal/format"
)

// Session.LastIntent values.
const (
	lastPropertyByCode = "property_by_code"
	lastSearch         = "search_by_filters"
	lastSeller         = "seller_onboarding"
	lastVisit          = "visit_request"
	lastAdvisor        = "advisor_handoff"
	lastFee            = "fee_simulation"
)

var menuChoice = regexp.MustCompile(`^([1-5])\s*[.)]?$`)

func (e *Engine) handleReset(ctx context.Context, t *Turn) *domain.Reply {
	t.Session.Reset()
	e.events.ConversationReset(ctx, t.Session.ID)
	reply := newReply(IntentReset, qrStart, msgReset)
	reply.Reset = true
	return reply
}

func (e *Engine) handleFallback(t *Turn) *domain.Reply {
	t.Session.Stage = domain.StageIdle
	return newReply(IntentFallback, qrFallback, msgFallback)
}

func (e *Engine) catalogDown(t *Turn, intent string, err error) *domain.Reply {
	e.logger.Warn("catalog unavailable",
		zap.String("session_id", t.Session.ID),
		zap.String("intent", intent),
		zap.Error(err),
	)
	t.Session.Stage = domain.StageIdle
	return newReply(intent, qrAdvisor, msgCatalogDown)
}

// codeFrom extracts the code from an explicit mention or a bare number.
func (e *Engine) codeFrom(folded string) string {
	if m := e.codeMatch.FindStringSubmatch(folded); m != nil {
		if len(m) > 1 && m[1] != "" {
			return m[1]
		}
		return domain.DigitsOnly(m[0])
	}
	if m := bareCode.FindStringSubmatch(folded); m != nil {
		return m[1]
	}
	return ""
}

func (e *Engine) handlePropertyCode(ctx context.Context, t *Turn) *domain.Reply {
	sess := t.Session
	code := e.codeFrom(t.Folded)
	if code == "" {
		return e.handleRequestCode(ctx, t)
	}

	p, err := e.catalog.FindByCode(ctx, code)
	switch {
	case apperrors.IsNotFound(err):
		sess.Stage = domain.StageAwaitingCode
		e.events.PropertyLookup(ctx, sess.ID, code, "not_found")
		return newReply(IntentPropertyCode, qrCodeNotFound, fmt.Sprintf(msgCodeNotFound, code))
	case err != nil:
		return e.catalogDown(t, IntentPropertyCode, err)
	}

	sess.Stage = domain.StageIdle
	if !p.IsAvailable() {
		e.events.PropertyLookup(ctx, sess.ID, code, "unavailable")
		return newReply(IntentPropertyCode, qrUnavailable,
			fmt.Sprintf(msgCodeUnavailable, code),
			msgOfferFilters,
		)
	}

	e.events.PropertyLookup(ctx, sess.ID, code, "found")
	sess.LastIntent = lastPropertyByCode
	sess.LastPropertyCode = p.Code
	return newReply(IntentPropertyCode, qrProperty, format.Property(*p))
}

func (e *Engine) handleRequestCode(_ context.Context, t *Turn) *domain.Reply {
	t.Session.Stage = domain.StageAwaitingCode
	return newReply(IntentRequestCode, nil, msgAskCode)
}

// Filters flow.

// handleSearchFilters starts a fresh search and uses whatever the message
// already says about type, budget and bedrooms.
func (e *Engine) handleSearchFilters(ctx context.Context, t *Turn) *domain.Reply {
	t.Session.Filters = domain.SearchFilters{}
	reply, _ := e.filterStep(ctx, t)
	return reply
}

func (e *Engine) filterStage(ctx context.Context, t *Turn) (*domain.Reply, bool) {
	reply, progressed := e.filterStep(ctx, t)
	if !progressed && t.Keyword != nil {
		return nil, false
	}
	return reply, true
}

// filterStep fills missing filters from the message, then asks for the next
// missing one or runs the search. progressed reports whether any filter was set.
func (e *Engine) filterStep(ctx context.Context, t *Turn) (*domain.Reply, bool) {
	sess := t.Session
	f := &sess.Filters
	progressed := false

	if f.Type == "" {
		if typ := catalog.ParseType(t.Text); typ != "" {
			f.Type = typ
			progressed = true
		}
	}
	if f.MaxRent == 0 {
		amount := ParseAmount(t.Text)
		if amount >= minBudget || (sess.Stage == domain.StageAwaitingBudget && amount > 0) {
			f.MaxRent = amount
			progressed = true
		}
	}
	if f.MinBedrooms == 0 && (f.Type == "" || f.Type.NeedsBedrooms()) {
		if n := parseRooms(t.Text, sess.Stage == domain.StageAwaitingRooms); n > 0 {
			f.MinBedrooms = n
			progressed = true
		}
	}

	switch {
	case f.Type == "":
		sess.Stage = domain.StageAwaitingType
		return newReply(IntentSearchFilters, nil, msgAskType), progressed
	case f.MaxRent == 0:
		sess.Stage = domain.StageAwaitingBudget
		return newReply(IntentSearchFilters, nil, msgAskBudget), progressed
	case f.Type.NeedsBedrooms() && f.MinBedrooms == 0:
		sess.Stage = domain.StageAwaitingRooms
		return newReply(IntentSearchFilters, nil, msgAskRooms), progressed
	}

	f.Offset = 0
	return e.search(ctx, t, IntentSearchFilters), progressed
}

// search runs the stored filters and renders one card per result. lead
// messages are sent before the cards.
func (e *Engine) search(ctx context.Context, t *Turn, intent string, lead ...string) *domain.Reply {
	sess := t.Session
	filters := sess.Filters
	if !filters.Type.NeedsBedrooms() {
		filters.MinBedrooms = 0
	}

	results, total, err := e.catalog.Search(ctx, filters, e.maxResults)
	if err != nil {
		return e.catalogDown(t, intent, err)
	}

	sess.Stage = domain.StageIdle
	sess.LastIntent = lastSearch
	e.events.SearchPerformed(ctx, sess.ID, string(filters.Type), filters.MaxRent, filters.MinBedrooms, total)

	msgs := append([]string(nil), lead...)
	if len(results) == 0 {
		if filters.Offset > 0 && total > 0 {
			msgs = append(msgs, msgNoMore, msgWiden)
		} else {
			msgs = append(msgs, msgNoResults, msgWiden)
		}
		return newReply(intent, qrNoResults, msgs...)
	}

	for _, p := range results {
		msgs = append(msgs, format.Property(p))
	}
	return newReply(intent, qrProperty, msgs...)
}

func (e *Engine) hasSearch(sess *domain.Session) bool {
	return sess.LastIntent == lastSearch && sess.Filters.Type != "" && sess.Filters.MaxRent > 0
}

func (e *Engine) handleMoreOptions(ctx context.Context, t *Turn) *domain.Reply {
	if !e.hasSearch(t.Session) {
		return e.handleSearchFilters(ctx, t)
	}
	t.Session.Filters.Offset += e.maxResults
	return e.search(ctx, t, IntentMoreOptions)
}

func (e *Engine) handleWidenBudget(ctx context.Context, t *Turn) *domain.Reply {
	f := &t.Session.Filters
	if f.Type == "" || f.MaxRent == 0 {
		return e.handleSearchFilters(ctx, t)
	}
	f.MaxRent = (f.MaxRent*110 + 50) / 100
	f.Offset = 0
	return e.search(ctx, t, IntentWidenBudget, fmt.Sprintf(msgWidened, format.COP(f.MaxRent)))
}

func (e *Engine) handleChangeType(_ context.Context, t *Turn) *domain.Reply {
	t.Session.Filters.Type = ""
	t.Session.Filters.Offset = 0
	t.Session.Stage = domain.StageAwaitingType
	return newReply(IntentChangeType, nil, msgChangeType, msgAskType)
}

// Menu.

func (e *Engine) handleMenu(_ context.Context, t *Turn) *domain.Reply {
	t.Session.Stage = domain.StageMenu
	greet := ""
	if fields := strings.Fields(t.Session.UserName); len(fields) > 0 {
		greet = ", " + fields[0]
	}
	return newReply(IntentMenu, qrMenu, fmt.Sprintf(msgMenu, greet, e.company.Name))
}

// menuStage maps the numbered options. Anything else leaves the menu.
func (e *Engine) menuStage(ctx context.Context, t *Turn) (*domain.Reply, bool) {
	m := menuChoice.FindStringSubmatch(t.Folded)
	if m == nil {
		return nil, false
	}
	t.Session.Stage = domain.StageIdle
	switch m[1] {
	case "1":
		return e.handleSearchFilters(ctx, t), true
	case "2":
		return e.handleRequestCode(ctx, t), true
	case "3":
		return e.handleSeller(ctx, t), true
	case "4":
		return e.handleFeeSimulation(ctx, t), true
	default:
		return e.handleAdvisor(ctx, t), true
	}
}

// Seller onboarding.

func (e *Engine) handleSeller(_ context.Context, t *Turn) *domain.Reply {
	t.Session.Seller = domain.SellerDraft{}
	t.Session.Stage = domain.StageSellerName
	return newReply(IntentSeller, nil, msgSellerStart)
}

// escapes reports whether a free-text answer is really a request to leave the flow.
func escapes(t *Turn) bool {
	if t.Keyword == nil {
		return false
	}
	switch t.Keyword.Intent {
	case IntentAdvisor, IntentSearchFilters, IntentRequestCode:
		return true
	}
	return false
}

func (e *Engine) sellerStage(ctx context.Context, t *Turn) (*domain.Reply, bool) {
	sess := t.Session
	draft := &sess.Seller

	switch sess.Stage {
	case domain.StageSellerName:
		if escapes(t) {
			return nil, false
		}
		name := contactName(t.Text, "")
		if len([]rune(name)) < 2 {
			return newReply(IntentSeller, nil, msgSellerAskName), true
		}
		draft.Name = name
		sess.Stage = domain.StageSellerPhone
		return newReply(IntentSeller, nil, fmt.Sprintf(msgSellerAskPhone, name)), true

	case domain.StageSellerPhone:
		phone, _ := extractPhone(t.Text)
		if phone == "" {
			if t.Keyword != nil {
				return nil, false
			}
			return newReply(IntentSeller, nil, msgSellerBadPhone), true
		}
		draft.Phone = phone
		sess.Stage = domain.StageSellerAddress
		return newReply(IntentSeller, nil, msgSellerAskAddr), true

	case domain.StageSellerAddress:
		if escapes(t) {
			return nil, false
		}
		if len([]rune(t.Text)) < 3 {
			return newReply(IntentSeller, nil, msgSellerAskAddr), true
		}
		draft.Address = t.Text
		sess.Stage = domain.StageSellerType
		return newReply(IntentSeller, qrTypes, msgSellerAskType), true

	case domain.StageSellerType:
		typ := catalog.ParseType(t.Text)
		if typ == "" {
			if t.Keyword != nil {
				return nil, false
			}
			return newReply(IntentSeller, qrTypes, msgSellerBadType), true
		}
		draft.PropertyType = typ
		sess.Stage = domain.StageSellerPrice
		return newReply(IntentSeller, nil, msgSellerAskPrice), true

	case domain.StageSellerPrice:
		amount := ParseAmount(t.Text)
		if amount <= 0 {
			if t.Keyword != nil {
				return nil, false
			}
			return newReply(IntentSeller, nil, msgSellerBadPrice), true
		}
		draft.AskingPrice = amount
		return e.completeSeller(ctx, t), true
	}
	return nil, false
}

func (e *Engine) completeSeller(ctx context.Context, t *Turn) *domain.Reply {
	sess := t.Session
	draft := sess.Seller

	lead := domain.NewLead(domain.LeadKindConsignment, sess.ID, e.clock.Now())
	lead.Name = draft.Name
	lead.Phone = draft.Phone
	lead.Address = draft.Address
	lead.PropertyType = draft.PropertyType
	lead.AskingPrice = draft.AskingPrice
	e.captureLead(ctx, lead)

	sess.Seller = domain.SellerDraft{}
	sess.Stage = domain.StageIdle
	sess.LastIntent = lastSeller

	summary := fmt.Sprintf(msgSellerSummary,
		draft.Name, draft.Phone, draft.Address, draft.PropertyType, format.COP(draft.AskingPrice))
	return newReply(IntentSeller, qrSellerDone, fmt.Sprintf(msgSellerDone, e.company.Name), summary)
}

// Visit requests.

func (e *Engine) handleScheduleVisit(_ context.Context, t *Turn) *domain.Reply {
	t.Session.Stage = domain.StageVisitContact
	if code := t.Session.LastPropertyCode; code != "" {
		return newReply(IntentScheduleVisit, nil, fmt.Sprintf(msgVisitAskCode, code))
	}
	return newReply(IntentScheduleVisit, nil, msgVisitAsk)
}

func (e *Engine) visitStage(ctx context.Context, t *Turn) (*domain.Reply, bool) {
	sess := t.Session
	phone, raw := extractPhone(t.Text)
	if phone == "" {
		if t.Keyword != nil {
			return nil, false
		}
		return newReply(IntentScheduleVisit, nil, msgVisitBadPhone), true
	}

	name := contactName(t.Text, raw)
	if name == "" {
		name = sess.UserName
	}

	lead := domain.NewLead(domain.LeadKindVisit, sess.ID, e.clock.Now())
	lead.Name = name
	lead.Phone = phone
	lead.PropertyCode = sess.LastPropertyCode
	e.captureLead(ctx, lead)

	sess.Stage = domain.StageIdle
	sess.LastIntent = lastVisit

	greet := ""
	if name != "" {
		greet = ", " + name
	}
	if lead.PropertyCode != "" {
		return newReply(IntentScheduleVisit, nil, fmt.Sprintf(msgVisitDoneCode, greet, phone, lead.PropertyCode)), true
	}
	return newReply(IntentScheduleVisit, nil, fmt.Sprintf(msgVisitDone, greet, phone)), true
}

// Fee simulation.

func (e *Engine) handleFeeSimulation(_ context.Context, t *Turn) *domain.Reply {
	if amount := ParseAmount(t.Text); amount >= minBudget {
		return e.simulate(t, amount)
	}
	t.Session.Stage = domain.StageFeeAmount
	return newReply(IntentFeeSimulation, nil, msgFeeAsk)
}

func (e *Engine) feeStage(_ context.Context, t *Turn) (*domain.Reply, bool) {
	amount := ParseAmount(t.Text)
	if amount <= 0 {
		if t.Keyword != nil {
			return nil, false
		}
		return newReply(IntentFeeSimulation, nil, msgFeeBadAmount), true
	}
	return e.simulate(t, amount), true
}

func (e *Engine) simulate(t *Turn, rent int64) *domain.Reply {
	sim, err := e.fees.Simulate(rent)
	if err != nil {
		return newReply(IntentFeeSimulation, nil, msgFeeBadAmount)
	}
	t.Session.Stage = domain.StageIdle
	t.Session.LastIntent = lastFee
	return newReply(IntentFeeSimulation, qrFee, format.FeeBreakdown(sim))
}

// Advisor handoff and company information.

func (e *Engine) handleAdvisor(ctx context.Context, t *Turn) *domain.Reply {
	sess := t.Session

	lead := domain.NewLead(domain.LeadKindAdvisor, sess.ID, e.clock.Now())
	lead.Name = sess.UserName
	lead.PropertyCode = sess.LastPropertyCode
	if !menuChoice.MatchString(t.Folded) {
		lead.Notes = t.Text
	}
	e.captureLead(ctx, lead)

	sess.Stage = domain.StageIdle
	sess.LastIntent = lastAdvisor
	if phone := e.company.AdvisorPhone; phone != "" {
		return newReply(IntentAdvisor, nil, fmt.Sprintf(msgAdvisorPhone, e.company.Name, phone))
	}
	return newReply(IntentAdvisor, nil, fmt.Sprintf(msgAdvisor, e.company.Name))
}

func (e *Engine) companyInfo(value, tmpl string) HandlerFunc {
	return func(_ context.Context, t *Turn) *domain.Reply {
		t.Session.Stage = domain.StageIdle
		if value == "" {
			return newReply(IntentCompanyInfo, qrAdvisor, msgCompanyUnknown)
		}
		return newReply(IntentCompanyInfo, qrFallback, fmt.Sprintf(tmpl, value))
	}
}
