package gateway

import (
	"context"

	"TeleProject/service/directory"
)

// Filter decides whether an inbound bus message may be forwarded to a
// session's client. It re-resolves ownership with a fresh directory lookup
// on every message instead of trusting the connect-time snapshot: ownership
// can change after connect (transfer, deletion) and a stale allow-list must
// not leak readings to a former owner.
//
// The check applies to every routable message regardless of the topic it
// arrived on. The broadcast topic widens what a session receives from the
// bus, never what is forwarded to the client.
type Filter struct {
	dir directory.Directory
}

func NewFilter(dir directory.Directory) *Filter {
	return &Filter{dir: dir}
}

// MayForward reports whether deviceID is currently owned by userID.
// A directory error denies the message (fail-closed) and is returned so the
// caller can log it; the session is expected to drop the message and stay
// active.
func (f *Filter) MayForward(ctx context.Context, userID, deviceID string) (bool, error) {
	owned, err := f.dir.OwnedDeviceIDs(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, id := range owned {
		if id == deviceID {
			return true, nil
		}
	}
	return false, nil
}
