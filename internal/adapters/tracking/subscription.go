package tracking

import (
	"field-visit-service/internal/domain"
	"sync"
)

const bufferSize = 16

// subscription fans one visit's reports into buffered channels. When the
// consumer falls behind, new samples are dropped rather than blocking the
// transport's delivery goroutine.
type subscription struct {
	samples chan domain.LocationCoordinates
	errs    chan error
	done    chan struct{}
	once    sync.Once
	release func() error
	err     error
}

func newSubscription(release func() error) *subscription {
	return &subscription{
		samples: make(chan domain.LocationCoordinates, bufferSize),
		errs:    make(chan error, bufferSize),
		done:    make(chan struct{}),
		release: release,
	}
}

func (s *subscription) Samples() <-chan domain.LocationCoordinates { return s.samples }

func (s *subscription) Errors() <-chan error { return s.errs }

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.release != nil {
			s.err = s.release()
		}
	})
	return s.err
}

// deliverSample reports whether the sample was queued.
func (s *subscription) deliverSample(c domain.LocationCoordinates) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.samples <- c:
		return true
	default:
		return false
	}
}

func (s *subscription) deliverError(err error) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.errs <- err:
		return true
	default:
		return false
	}
}
