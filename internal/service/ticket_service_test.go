package service

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repair-service/internal/attachments"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/persistence"
	"github.com/spec-kit/repair-service/internal/repository"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

var fixedNow = time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)

var (
	customer   = domain.Actor{UserID: "cust-1", Role: domain.RoleCustomer}
	stranger   = domain.Actor{UserID: "cust-2", Role: domain.RoleCustomer}
	technician = domain.Actor{UserID: "tech-1", Role: domain.RoleTechnician}
	admin      = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
	manager    = domain.Actor{UserID: "mgr-1", Role: domain.RoleManager}
)

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordedEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc           *TicketService
	repo          repository.TicketRepository
	recorder      *recordedEvents
	attachmentDir string
}

func newFixture(t *testing.T, repo repository.TicketRepository) fixture {
	t.Helper()
	if repo == nil {
		repo = repository.NewMemoryTicketRepository()
	}
	dir := t.TempDir()
	store, err := attachments.NewFilesystemStore(dir, 1024)
	require.NoError(t, err)

	dispatcher := events.NewInMemoryDispatcher()
	recorder := &recordedEvents{}
	for _, et := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketCommentAdded,
		events.EventTicketEscalated,
	} {
		dispatcher.Subscribe(et, recorder.handle)
	}

	svc := NewTicketService(TicketDependencies{
		TicketRepo:     repo,
		Attachments:    store,
		Locker:         persistence.NewLocalTicketLocker(time.Second),
		Dispatcher:     dispatcher,
		Clock:          func() time.Time { return fixedNow },
		MaxAttachments: 2,
	})
	return fixture{svc: svc, repo: repo, recorder: recorder, attachmentDir: dir}
}

func laptopInput() TicketCreateInput {
	return TicketCreateInput{
		SerialNumber:     "SN-123",
		Model:            "ThinkPad X1",
		PurchaseDate:     "2025-12-15",
		DeviceType:       "Laptop",
		IssueCategory:    "Hardware",
		IssueDescription: "Keyboard stopped working",
	}
}

func (f fixture) create(t *testing.T) *domain.Ticket {
	t.Helper()
	res, err := f.svc.CreateTicket(context.Background(), customer.UserID, laptopInput())
	require.NoError(t, err)
	return res.Ticket
}

func TestCreateTicketDerivesWarrantyAndRouting(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.svc.CreateTicket(context.Background(), customer.UserID, laptopInput())
	require.NoError(t, err)

	assert.Regexp(t, `^TKT-[0-9A-F]{8}$`, res.TicketNumber)
	assert.Equal(t, domain.WarrantyUnder, res.WarrantyStatus)
	assert.Equal(t, "Repair Center B", res.AssignedRepairCenter)
	assert.False(t, res.Deferred)

	ticket := res.Ticket
	assert.Equal(t, domain.TicketStatusSubmitted, ticket.Status)
	assert.False(t, ticket.Escalated)
	assert.Empty(t, ticket.InternalComments)
	assert.Equal(t, int64(1), ticket.Version)
	require.Len(t, ticket.History, 1)
	assert.Equal(t, domain.ActionTicketCreated, ticket.History[0].Action)
	assert.Equal(t, "Initial submission by customer", ticket.History[0].Note)
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, f.recorder.types())
}

func TestCreateTicketWarrantyBoundary(t *testing.T) {
	f := newFixture(t, nil)
	cases := map[string]domain.WarrantyStatus{
		"2024-10-01": domain.WarrantyUnder,
		"2024-09-30": domain.WarrantyOut,
	}
	for date, want := range cases {
		input := laptopInput()
		input.PurchaseDate = date
		res, err := f.svc.CreateTicket(context.Background(), customer.UserID, input)
		require.NoError(t, err)
		assert.Equal(t, want, res.WarrantyStatus, date)
	}
}

func TestCreateTicketUnknownDeviceIsDeferred(t *testing.T) {
	f := newFixture(t, nil)
	input := laptopInput()
	input.DeviceType = "Drone"
	res, err := f.svc.CreateTicket(context.Background(), customer.UserID, input)
	require.NoError(t, err)
	assert.Equal(t, "Deferred Assignment Queue", res.AssignedRepairCenter)
	assert.True(t, res.Deferred)
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	missing := laptopInput()
	missing.SerialNumber = "  "
	_, err := f.svc.CreateTicket(ctx, customer.UserID, missing)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	future := laptopInput()
	future.PurchaseDate = "2027-01-01"
	_, err = f.svc.CreateTicket(ctx, customer.UserID, future)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	garbage := laptopInput()
	garbage.PurchaseDate = "last tuesday"
	_, err = f.svc.CreateTicket(ctx, customer.UserID, garbage)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	tooMany := laptopInput()
	for i := 0; i < 3; i++ {
		tooMany.Attachments = append(tooMany.Attachments, attachments.Upload{FileName: "a.png", Content: strings.NewReader("x")})
	}
	_, err = f.svc.CreateTicket(ctx, customer.UserID, tooMany)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	assert.Empty(t, f.recorder.types())
}

const pngPhoto = "\x89PNG\r\n\x1a\npixels"

func TestCreateTicketStoresAttachments(t *testing.T) {
	f := newFixture(t, nil)
	input := laptopInput()
	input.Attachments = []attachments.Upload{{FileName: "screen.png", ContentType: "image/png", Content: strings.NewReader(pngPhoto)}}

	res, err := f.svc.CreateTicket(context.Background(), customer.UserID, input)
	require.NoError(t, err)
	require.Len(t, res.Ticket.Issue.Attachments, 1)
	ref := res.Ticket.Issue.Attachments[0]
	assert.Equal(t, "screen.png", ref.FileName)

	got, content, err := f.svc.OpenAttachment(context.Background(), res.TicketNumber, ref.StorageKey, customer)
	require.NoError(t, err)
	assert.Equal(t, ref.StorageKey, got.StorageKey)
	assert.Equal(t, pngPhoto, string(content))

	_, _, err = f.svc.OpenAttachment(context.Background(), res.TicketNumber, ref.StorageKey, stranger)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	_, _, err = f.svc.OpenAttachment(context.Background(), res.TicketNumber, "2026/10/other.png", customer)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestListTicketsForOwnerNewestFirst(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	f := newFixture(t, repo)
	clock := fixedNow
	f.svc.now = func() time.Time { return clock }

	first := f.create(t)
	clock = clock.Add(time.Hour)
	second := f.create(t)
	_, err := f.svc.CreateTicket(context.Background(), stranger.UserID, laptopInput())
	require.NoError(t, err)

	list, err := f.svc.ListTicketsForOwner(context.Background(), customer.UserID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.TicketNumber, list[0].TicketNumber)
	assert.Equal(t, first.TicketNumber, list[1].TicketNumber)
}

func TestGetTicketVisibility(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ticket := f.create(t)
	_, err := f.svc.AddComment(ctx, ticket.TicketNumber, "needs new keyboard", domain.CommentTypeNote, technician)
	require.NoError(t, err)

	own, err := f.svc.GetTicket(ctx, ticket.TicketNumber, customer)
	require.NoError(t, err)
	assert.Empty(t, own.InternalComments)

	staffView, err := f.svc.GetTicket(ctx, ticket.TicketNumber, manager)
	require.NoError(t, err)
	assert.Len(t, staffView.InternalComments, 1)

	_, err = f.svc.GetTicket(ctx, ticket.TicketNumber, stranger)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.svc.GetTicket(ctx, "TKT-MISSING0", manager)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestListTicketsForStaff(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ticket := f.create(t)
	other := f.create(t)
	_, err := f.svc.Escalate(ctx, other.TicketNumber, technician)
	require.NoError(t, err)

	_, err = f.svc.ListTickets(ctx, customer, TicketListFilter{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	escalated := true
	list, err := f.svc.ListTickets(ctx, technician, TicketListFilter{Escalated: &escalated})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, other.TicketNumber, list[0].TicketNumber)

	list, err = f.svc.ListTickets(ctx, admin, TicketListFilter{Statuses: []domain.TicketStatus{domain.TicketStatusSubmitted}})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Contains(t, []string{list[0].TicketNumber, list[1].TicketNumber}, ticket.TicketNumber)

	_, err = f.svc.ListTickets(ctx, admin, TicketListFilter{Statuses: []domain.TicketStatus{"Lost"}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestTransitionStatusByRole(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ticket := f.create(t)

	_, err := f.svc.TransitionStatus(ctx, ticket.TicketNumber, domain.TicketStatusCompleted, technician)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	_, err = f.svc.TransitionStatus(ctx, ticket.TicketNumber, domain.TicketStatusInProgress, customer)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	updated, err := f.svc.TransitionStatus(ctx, ticket.TicketNumber, domain.TicketStatusCompleted, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCompleted, updated.Status)
	assert.Equal(t, int64(2), updated.Version)
	require.Len(t, updated.History, 2)
	last := updated.History[1]
	assert.Equal(t, domain.ActionStatusChanged, last.Action)
	assert.Equal(t, admin.UserID, last.ChangedBy)
	assert.Equal(t, domain.TicketStatusSubmitted, last.FromStatus)
	assert.Equal(t, domain.TicketStatusCompleted, last.ToStatus)

	_, err = f.svc.TransitionStatus(ctx, "TKT-MISSING0", domain.TicketStatusCompleted, admin)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	assert.Equal(t, []events.EventType{events.EventTicketCreated, events.EventTicketStatusChanged}, f.recorder.types())
}

func TestTerminalStatesRejectEveryRole(t *testing.T) {
	for _, terminal := range []domain.TicketStatus{domain.TicketStatusClosed, domain.TicketStatusCancelled} {
		f := newFixture(t, nil)
		ctx := context.Background()
		ticket := f.create(t)
		if terminal == domain.TicketStatusClosed {
			_, err := f.svc.TransitionStatus(ctx, ticket.TicketNumber, domain.TicketStatusCompleted, admin)
			require.NoError(t, err)
		}
		_, err := f.svc.TransitionStatus(ctx, ticket.TicketNumber, terminal, admin)
		require.NoError(t, err)

		for _, actor := range []domain.Actor{technician, admin, manager, {UserID: "emp-1", Role: domain.RoleEmployee}} {
			for _, target := range domain.TicketStatuses {
				_, err := f.svc.TransitionStatus(ctx, ticket.TicketNumber, target, actor)
				assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition), "%s %s->%s", actor.Role, terminal, target)
			}
		}
		targets, err := f.svc.AllowedTransitions(ctx, ticket.TicketNumber, admin)
		require.NoError(t, err)
		assert.Empty(t, targets)
	}
}

func TestAllowedTransitions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ticket := f.create(t)

	targets, err := f.svc.AllowedTransitions(ctx, ticket.TicketNumber, technician)
	require.NoError(t, err)
	assert.Equal(t, []domain.TicketStatus{
		domain.TicketStatusPendingValidation,
		domain.TicketStatusShipping,
		domain.TicketStatusInProgress,
		domain.TicketStatusCancelled,
	}, targets)

	targets, err = f.svc.AllowedTransitions(ctx, ticket.TicketNumber, admin)
	require.NoError(t, err)
	assert.Len(t, targets, len(domain.TicketStatuses)-1)
	assert.NotContains(t, targets, domain.TicketStatusSubmitted)

	_, err = f.svc.AllowedTransitions(ctx, ticket.TicketNumber, customer)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestEscalate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ticket := f.create(t)

	_, err := f.svc.Escalate(ctx, ticket.TicketNumber, admin)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	escalated, err := f.svc.Escalate(ctx, ticket.TicketNumber, technician)
	require.NoError(t, err)
	assert.True(t, escalated.Escalated)
	assert.Equal(t, domain.TicketStatusSubmitted, escalated.Status)
	assert.Equal(t, domain.ActionEscalated, escalated.History[len(escalated.History)-1].Action)

	_, err = f.svc.Escalate(ctx, ticket.TicketNumber, technician)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyEscalated))

	moved, err := f.svc.TransitionStatus(ctx, ticket.TicketNumber, domain.TicketStatusInProgress, technician)
	require.NoError(t, err)
	assert.True(t, moved.Escalated)
}

func TestAddComment(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ticket := f.create(t)

	_, err := f.svc.AddComment(ctx, ticket.TicketNumber, "where is my laptop", domain.CommentTypeNote, customer)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.svc.AddComment(ctx, ticket.TicketNumber, "   ", domain.CommentTypeNote, technician)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.svc.AddComment(ctx, ticket.TicketNumber, "text", domain.CommentType("Gossip"), technician)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.svc.AddComment(ctx, "TKT-MISSING0", "text", domain.CommentTypeNote, technician)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	updated, err := f.svc.AddComment(ctx, ticket.TicketNumber, "  ordered a keyboard  ", domain.CommentTypeWaitingForParts, technician)
	require.NoError(t, err)
	require.Len(t, updated.InternalComments, 1)
	comment := updated.InternalComments[0]
	assert.Equal(t, "ordered a keyboard", comment.Text)
	assert.Equal(t, technician.UserID, comment.AuthorID)
	assert.Equal(t, fixedNow, comment.CreatedAt)

	updated, err = f.svc.AddComment(ctx, ticket.TicketNumber, "customer called", domain.CommentTypeSLARisk, manager)
	require.NoError(t, err)
	require.Len(t, updated.InternalComments, 2)
	assert.Equal(t, "ordered a keyboard", updated.InternalComments[0].Text)
}

// conflictingRepo fails the first n updates with a version conflict.
type conflictingRepo struct {
	repository.TicketRepository
	mu        sync.Mutex
	conflicts int
}

func (r *conflictingRepo) Save(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) (*domain.Ticket, error) {
	r.mu.Lock()
	if expectedVersion > 0 && r.conflicts > 0 {
		r.conflicts--
		r.mu.Unlock()
		return nil, repository.ErrVersionConflict
	}
	r.mu.Unlock()
	return r.TicketRepository.Save(ctx, ticket, expectedVersion)
}

func TestAddCommentRetriesConflicts(t *testing.T) {
	repo := &conflictingRepo{TicketRepository: repository.NewMemoryTicketRepository()}
	f := newFixture(t, repo)
	ctx := context.Background()
	ticket := f.create(t)

	repo.conflicts = 2
	updated, err := f.svc.AddComment(ctx, ticket.TicketNumber, "retry me", domain.CommentTypeNote, technician)
	require.NoError(t, err)
	assert.Len(t, updated.InternalComments, 1)

	repo.conflicts = commentSaveAttempts
	_, err = f.svc.AddComment(ctx, ticket.TicketNumber, "give up", domain.CommentTypeNote, technician)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConcurrency))
}

func TestTransitionVersionConflictIsNotRetried(t *testing.T) {
	repo := &conflictingRepo{TicketRepository: repository.NewMemoryTicketRepository()}
	f := newFixture(t, repo)
	ticket := f.create(t)

	repo.conflicts = 1
	_, err := f.svc.TransitionStatus(context.Background(), ticket.TicketNumber, domain.TicketStatusInProgress, technician)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConcurrency))

	current, err := f.svc.GetTicket(context.Background(), ticket.TicketNumber, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusSubmitted, current.Status)
	assert.Len(t, current.History, 1)
}

type failingRepo struct {
	repository.TicketRepository
}

func (failingRepo) Get(context.Context, string) (*domain.Ticket, error) {
	return nil, errors.New("connection refused")
}

func TestStoreFailuresSurfaceAsServiceError(t *testing.T) {
	f := newFixture(t, failingRepo{TicketRepository: repository.NewMemoryTicketRepository()})
	_, err := f.svc.TransitionStatus(context.Background(), "TKT-00000000", domain.TicketStatusInProgress, technician)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeServiceUnavailable))
}

// storedFiles counts payloads left in the attachment directory.
func (f fixture) storedFiles(t *testing.T) int {
	t.Helper()
	count := 0
	err := filepath.WalkDir(f.attachmentDir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	require.NoError(t, err)
	return count
}

type insertFailingRepo struct {
	repository.TicketRepository
}

func (insertFailingRepo) Save(context.Context, *domain.Ticket, int64) (*domain.Ticket, error) {
	return nil, errors.New("connection reset")
}

func TestCreateTicketDiscardsAttachmentsWhenSaveFails(t *testing.T) {
	f := newFixture(t, insertFailingRepo{TicketRepository: repository.NewMemoryTicketRepository()})
	input := laptopInput()
	input.Attachments = []attachments.Upload{
		{FileName: "front.png", Content: strings.NewReader(pngPhoto)},
		{FileName: "back.png", Content: strings.NewReader(pngPhoto)},
	}

	_, err := f.svc.CreateTicket(context.Background(), customer.UserID, input)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeServiceUnavailable))
	assert.Zero(t, f.storedFiles(t))
	assert.Empty(t, f.recorder.types())
}

func TestCreateTicketDiscardsEarlierAttachmentsWhenOneIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	input := laptopInput()
	input.Attachments = []attachments.Upload{
		{FileName: "front.png", Content: strings.NewReader(pngPhoto)},
		{FileName: "page.png", Content: strings.NewReader("<html></html>")},
	}

	_, err := f.svc.CreateTicket(context.Background(), customer.UserID, input)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Zero(t, f.storedFiles(t))
}

func TestStringPreviewKeepsValidUTF8(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		max      int
		expected string
	}{
		{"short stays", "  fan ordered  ", 20, "fan ordered"},
		{"ascii truncated", "abcdefghij", 6, "abc..."},
		{"multibyte truncated", "écran cassé à réparer", 8, "écran..."},
		{"emoji truncated", "🔧🔧🔧🔧🔧", 4, "🔧..."},
		{"tiny max", "ñandú", 2, "ña"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := stringPreview(tc.body, tc.max)
			assert.Equal(t, tc.expected, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string) (persistence.ReleaseFunc, error) {
	return nil, persistence.ErrLockBusy
}

func TestBusyLockIsConcurrencyConflict(t *testing.T) {
	f := newFixture(t, nil)
	ticket := f.create(t)
	f.svc.locker = busyLocker{}

	_, err := f.svc.TransitionStatus(context.Background(), ticket.TicketNumber, domain.TicketStatusInProgress, technician)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConcurrency))
	_, err = f.svc.Escalate(context.Background(), ticket.TicketNumber, technician)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConcurrency))
}

func TestConcurrentTransitionsOnSameTicket(t *testing.T) {
	f := newFixture(t, nil)
	ticket := f.create(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.TransitionStatus(context.Background(), ticket.TicketNumber, domain.TicketStatusInProgress, technician)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition) || apperrors.HasCode(err, apperrors.CodeConcurrency), err.Error())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	current, err := f.svc.GetTicket(context.Background(), ticket.TicketNumber, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, current.Status)
	assert.Len(t, current.History, 2)
}

func TestConcurrentCommentsAreNotLost(t *testing.T) {
	f := newFixture(t, nil)
	ticket := f.create(t)

	const writers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddComment(context.Background(), ticket.TicketNumber, "parallel note", domain.CommentTypeNote, technician)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.True(t, apperrors.HasCode(err, apperrors.CodeConcurrency), err.Error())
		}()
	}
	wg.Wait()

	current, err := f.svc.GetTicket(context.Background(), ticket.TicketNumber, admin)
	require.NoError(t, err)
	assert.Len(t, current.InternalComments, successes)
	assert.Positive(t, successes)
}
