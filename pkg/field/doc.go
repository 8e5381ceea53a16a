// Package field holds the declarative form-field model: the Spec tagged
// union, structured visibility predicates, the pure visible/required
// evaluator, shared value validators, and YAML catalog loading.
package field
