package reconcile

import "github.com/roach88/scenesync/internal/element"

// ShouldDiscardRemote reports whether the remote copy of an element must be
// dropped in favour of the local one. local is nil when the element is not
// known locally, in which case the remote copy always wins.
func ShouldDiscardRemote(editing element.EditingState, local *element.Element, remote element.Element) bool {
	if local == nil {
		return false
	}
	if editing.IsEditing(local.ID) {
		return true
	}
	if local.Version > remote.Version {
		return true
	}
	return local.Version == remote.Version && local.VersionNonce < remote.VersionNonce
}
