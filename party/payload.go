/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package party

import (
	"encoding/json"
	"fmt"
)

// Decode unmarshals an action payload, reporting failures as ErrInvalidAction.
func Decode(payload []byte, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: missing payload", ErrInvalidAction)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	return nil
}

// UnknownAction is returned by games for actions they do not implement.
func UnknownAction(action string) error {
	return fmt.Errorf("%w: %q", ErrInvalidAction, action)
}
