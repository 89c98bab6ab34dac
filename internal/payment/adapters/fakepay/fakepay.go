package fakepay

import (
	"context"
	"net/http"
	"sync"

	"github.com/smartorder/smartorder/internal/payment/domain"
)

// Adapter is an in-memory gateway for development and tests. Sessions are
// recorded, poll statuses are whatever the test scripted.
type Adapter struct {
	mu       sync.Mutex
	sessions map[string]domain.SessionRequest
	statuses map[string]domain.NormalizedStatus

	CreateErr error
}

func New() *Adapter {
	return &Adapter{
		sessions: make(map[string]domain.SessionRequest),
		statuses: make(map[string]domain.NormalizedStatus),
	}
}

func (a *Adapter) Provider() string { return "fakepay" }

func (a *Adapter) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.CreateErr != nil {
		return nil, a.CreateErr
	}
	a.sessions[req.OrderCode] = req
	a.statuses[req.OrderCode] = domain.StatusPending
	return &domain.Session{
		Reference:   "fake-" + req.OrderCode,
		RedirectURL: "https://pay.fakepay.test/" + req.OrderCode,
	}, nil
}

func (a *Adapter) PollStatus(ctx context.Context, orderCode string) (domain.NormalizedStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	status, ok := a.statuses[orderCode]
	if !ok {
		return domain.StatusPending, nil
	}
	return status, nil
}

func (a *Adapter) Verify(payload []byte, headers http.Header) error { return nil }

func (a *Adapter) Parse(payload []byte) (*domain.Notification, error) {
	return nil, domain.ErrEventIgnored
}

// SetStatus scripts the status the next poll returns.
func (a *Adapter) SetStatus(orderCode string, status domain.NormalizedStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statuses[orderCode] = status
}

// SessionFor reports the recorded session request, if any.
func (a *Adapter) SessionFor(orderCode string) (domain.SessionRequest, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	req, ok := a.sessions[orderCode]
	return req, ok
}
