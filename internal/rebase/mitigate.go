package rebase

import "fmt"

// MitigationHandler receives algebra failures caught by a mitigated family.
// op names the failing operation ("compose", "invert", "rebase",
// "revisions", "changeRevision").
type MitigationHandler func(op string, err error)

// NewMitigatedFamily decorates a change family so that failures in its
// algebra (Compose, Invert, Rebase, and the RevisionReplacer capability when
// present) are contained: the error is reported through onError exactly once
// and the operation yields fallback (an empty slice for Revisions) instead
// of failing the caller. One corrupt change in background reconciliation
// then degrades that change rather than the whole session.
//
// BuildEditor is never mitigated: it runs synchronously in the local edit
// path, and a failure there must surface immediately. Codecs passes through
// untouched.
func NewMitigatedFamily[T any](inner ChangeFamily[T], fallback T, onError MitigationHandler) ChangeFamily[T] {
	return &mitigatedFamily[T]{inner: inner, fallback: fallback, onError: onError}
}

type mitigatedFamily[T any] struct {
	inner    ChangeFamily[T]
	fallback T
	onError  MitigationHandler
}

func (f *mitigatedFamily[T]) Rebaser() ChangeRebaser[T] {
	inner := f.inner.Rebaser()
	m := mitigatedRebaser[T]{inner: inner, fallback: f.fallback, onError: f.onError}
	if replacer, ok := inner.(RevisionReplacer[T]); ok {
		return &mitigatedReplacerRebaser[T]{mitigatedRebaser: m, replacer: replacer}
	}
	return &m
}

func (f *mitigatedFamily[T]) BuildEditor(apply func(T)) (Editor[T], error) {
	return f.inner.BuildEditor(apply)
}

func (f *mitigatedFamily[T]) Codecs() any {
	return f.inner.Codecs()
}

type mitigatedRebaser[T any] struct {
	inner    ChangeRebaser[T]
	fallback T
	onError  MitigationHandler
}

func (m *mitigatedRebaser[T]) Compose(changes []TaggedChange[T]) (T, error) {
	return m.guard("compose", func() (T, error) { return m.inner.Compose(changes) })
}

func (m *mitigatedRebaser[T]) Invert(change TaggedChange[T], isRollback bool) (T, error) {
	return m.guard("invert", func() (T, error) { return m.inner.Invert(change, isRollback) })
}

func (m *mitigatedRebaser[T]) Rebase(change T, over TaggedChange[T]) (T, error) {
	return m.guard("rebase", func() (T, error) { return m.inner.Rebase(change, over) })
}

// guard runs op, converting panics to errors, and substitutes the fallback
// after reporting any failure.
func (m *mitigatedRebaser[T]) guard(op string, fn func() (T, error)) (T, error) {
	out, err := recovered(fn)
	if err != nil {
		m.onError(op, err)
		return m.fallback, nil
	}
	return out, nil
}

type mitigatedReplacerRebaser[T any] struct {
	mitigatedRebaser[T]
	replacer RevisionReplacer[T]
}

func (m *mitigatedReplacerRebaser[T]) Revisions(change T) []RevisionTag {
	revs, err := recovered(func() ([]RevisionTag, error) {
		return m.replacer.Revisions(change), nil
	})
	if err != nil {
		m.onError("revisions", err)
		return nil
	}
	return revs
}

func (m *mitigatedReplacerRebaser[T]) ChangeRevision(change T, old []RevisionTag, updated RevisionTag) T {
	out, err := recovered(func() (T, error) {
		return m.replacer.ChangeRevision(change, old, updated), nil
	})
	if err != nil {
		m.onError("changeRevision", err)
		return m.fallback
	}
	return out
}

func recovered[R any](fn func() (R, error)) (out R, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	return fn()
}
