package voice

import "errors"

// Trigger starts a sound.
type Trigger interface {
	Play() error
}

// Layer plays several triggers as one. Every trigger is played even when an
// earlier one fails; the failures are joined.
type Layer []Trigger

func (l Layer) Play() error {
	var errs []error
	for _, t := range l {
		if t == nil {
			continue
		}
		if err := t.Play(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
