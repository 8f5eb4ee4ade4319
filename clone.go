package sealed

// Cloner allows types to provide deep copy logic.
// Implementing this interface is required for use with Processor.
//
// Store encrypts a clone, so the clone must not share slices or maps of
// encrypted fields with the original:
//
//	func (c Card) Clone() Card {
//	    tags := make([]string, len(c.Tags))
//	    copy(tags, c.Tags)
//	    return Card{Number: c.Number, Tags: tags}
//	}
//
// Types with only scalar fields can return the receiver:
//
//	func (u User) Clone() User { return u }
type Cloner[T any] interface {
	Clone() T
}
