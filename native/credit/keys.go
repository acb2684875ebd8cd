package credit

import (
	"encoding/binary"
	"fmt"
)

const keyPrefix = "credit"

var (
	pausedKey      = []byte(keyPrefix + "/paused")
	lenderIndexKey = []byte(keyPrefix + "/lenders/index")
	planSeqKey     = []byte(keyPrefix + "/plan/seq")
)

func lenderKey(id Identity) []byte {
	return []byte(fmt.Sprintf("%s/lender/%x", keyPrefix, id[:]))
}

func profileKey(id Identity) []byte {
	return []byte(fmt.Sprintf("%s/profile/%x", keyPrefix, id[:]))
}

func planKey(planID uint64) []byte {
	return []byte(fmt.Sprintf("%s/plan/%d", keyPrefix, planID))
}

func lenderPlansKey(id Identity) []byte {
	return []byte(fmt.Sprintf("%s/lender-plans/%x", keyPrefix, id[:]))
}

func lenderClientsKey(id Identity) []byte {
	return []byte(fmt.Sprintf("%s/lender-clients/%x", keyPrefix, id[:]))
}

func encodePlanID(planID uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, planID)
	return buf
}

func decodePlanID(raw []byte) (uint64, bool) {
	if len(raw) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(raw), true
}
