package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}

// Invoice builds a human-readable invoice number such as INV-20260310-3f2a1c.
func Invoice(t time.Time) string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("INV-%s-%06d", t.Format("20060102"), t.UnixNano()%1000000)
	}
	return fmt.Sprintf("INV-%s-%s", t.Format("20060102"), hex.EncodeToString(buf))
}
