package persistence

import "encoding/json"

// WriteModel persists a trained model's state under namespace (one of
// NamespaceLRModel, NamespaceKMeansModel) keyed by type string, via the
// default named-slot strategy.
func (s *Store) WriteModel(namespace, typeKey string, state any) error {
	return s.Write(StrategyDefault, ObjectWrite{Namespace: namespace, Key: typeKey, Value: state})
}

// ReadModel loads a trained model's state into out. ok is false if no
// model has been persisted yet for typeKey.
func (s *Store) ReadModel(namespace, typeKey string, out any) (bool, error) {
	blob, ok, err := s.Read(namespace, typeKey)
	if err != nil || !ok {
		return ok, err
	}
	return true, json.Unmarshal(blob, out)
}
