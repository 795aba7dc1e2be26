package archive

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKey_Prefixes(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 589793238, time.UTC)

	assert.Equal(t, "connection-failed-20250314T092653.589793238Z", Key(KindConnectionFailed, now))
	assert.Equal(t, "processing-error-20250314T092653.589793238Z", Key(KindProcessingError, now))
}

func TestKey_SortableWithinPrefix(t *testing.T) {
	base := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	keys := []string{
		Key(KindProcessingError, base.Add(2*time.Hour)),
		Key(KindProcessingError, base),
		Key(KindProcessingError, base.Add(5*time.Millisecond)),
	}
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	assert.Equal(t, []string{keys[1], keys[2], keys[0]}, sorted)
}

func TestKey_NonUTCInputNormalized(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	local := time.Date(2025, 3, 14, 11, 0, 0, 0, loc)

	assert.Equal(t, "connection-failed-20250314T090000.000000000Z", Key(KindConnectionFailed, local))
}
