package collection

// Page is one window of a collection as read from a store, before it is
// translated and assembled into an Envelope.
type Page[T any] struct {
	Items []T
	Total int
}
