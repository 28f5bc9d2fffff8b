package ntp

import "os"

// EffectiveUID treats effective uid 0 as privileged. Platforms without
// uids report -1 and are never privileged.
type EffectiveUID struct{}

// IsPrivileged implements PrivilegeChecker
func (EffectiveUID) IsPrivileged() bool {
	return os.Geteuid() == 0
}
