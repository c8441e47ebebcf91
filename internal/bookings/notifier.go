package bookings

import (
	"context"
	"time"

	"github.com/salonhq/booking-assistant/pkg/logging"
)

const defaultNotifyInterval = 30 * time.Second

// Notify delivers a staff alert for one new booking.
type Notify func(ctx context.Context, b *Booking) error

// Notifier periodically scans for pending bookings that staff have not been
// alerted about and marks them notified once the alert goes out. The
// notified_at column makes the scan restart-safe: a crash between alert and
// mark at worst repeats one alert, it never loses one.
type Notifier struct {
	repo     Repository
	notify   Notify
	interval time.Duration
	logger   *logging.Logger
}

// NewNotifier creates the notifier. A nil notify falls back to logging the
// alert, which is enough for deployments without a staff channel configured.
func NewNotifier(repo Repository, notify Notify, interval time.Duration, logger *logging.Logger) *Notifier {
	if repo == nil {
		panic("bookings: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	n := &Notifier{repo: repo, notify: notify, interval: interval, logger: logger}
	if n.interval <= 0 {
		n.interval = defaultNotifyInterval
	}
	if n.notify == nil {
		n.notify = n.logAlert
	}
	return n
}

// Run scans until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.Sweep(ctx)
		}
	}
}

// Sweep performs one scan-and-notify pass.
func (n *Notifier) Sweep(ctx context.Context) {
	pending, err := n.repo.ListUnnotifiedPending(ctx)
	if err != nil {
		n.logger.Error("failed to list unnotified bookings", "error", err)
		return
	}
	for _, b := range pending {
		if err := n.notify(ctx, b); err != nil {
			n.logger.Error("booking alert failed", "booking_id", b.ID, "error", err)
			continue
		}
		if err := n.repo.MarkNotified(ctx, b.ID); err != nil {
			n.logger.Error("failed to mark booking notified", "booking_id", b.ID, "error", err)
		}
	}
}

func (n *Notifier) logAlert(_ context.Context, b *Booking) error {
	n.logger.Info("new booking request",
		"booking_id", b.ID,
		"client_name", b.ClientName,
		"phone", b.Phone,
		"service", b.ServiceDescription,
	)
	return nil
}
