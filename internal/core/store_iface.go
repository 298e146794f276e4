package core

// PrefStore is the external key/value store for user preferences.
// Values are simple strings, read once at startup, written on every
// explicit selection.
type PrefStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}
