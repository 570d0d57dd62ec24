package correlate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// CampaignID derives a campaign id from its member event ids. The id is a
// pure function of the sorted member set and the scan date, so re-deriving
// it from the same inputs reproduces the same id.
func CampaignID(date time.Time, memberIDs []string) string {
	ids := make([]string, len(memberIDs))
	copy(ids, memberIDs)
	sort.Strings(ids)

	sum := sha256.Sum256([]byte(strings.Join(ids, ",")))
	return fmt.Sprintf("C-%s-%s", date.UTC().Format("20060102"), hex.EncodeToString(sum[:4]))
}
