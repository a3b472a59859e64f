package services

// Store holds the last commanded device states, surviving process restarts.
type Store interface {
	Set(key string, value string) error
	Get(key string) (string, error)
	GetRecursive(prefix string) ([]Node, error)
}

type Node struct {
	Key   string
	Value string
}
