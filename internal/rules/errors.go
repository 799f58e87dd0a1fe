package rules

import "errors"

// ErrRuleNotFound indicates a mandatory fare rule lookup found nothing.
var ErrRuleNotFound = errors.New("rules: rule not found")
