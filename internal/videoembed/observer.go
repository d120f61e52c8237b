package videoembed

// Entry is one visibility notification for an observed container.
type Entry struct {
	Target string
	Ratio  float64
}

// Subscription is a live observation registration.
type Subscription interface {
	Release()
}

// Observer is the host primitive that reports container visibility.
type Observer interface {
	Observe(target string, threshold float64, fn func(Entry)) (Subscription, error)
}
