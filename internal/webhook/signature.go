package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sign produces the signature header for a payload:
//
//	t=<unixSeconds>,v1=<hex-hmac-sha256(secret, "<unixSeconds>.<payload>")>
//
// Receivers recompute the HMAC over the same timestamped message, so a
// replayed body with a forged timestamp fails verification.
func Sign(secret, payload []byte, now time.Time) string {
	ts := now.Unix()
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// Verify checks a signature header against the payload. tolerance bounds how
// old the signed timestamp may be; zero disables the age check.
func Verify(secret, payload []byte, header string, now time.Time, tolerance time.Duration) error {
	var ts int64
	var sig string
	for _, part := range strings.Split(header, ",") {
		switch {
		case strings.HasPrefix(part, "t="):
			v, err := strconv.ParseInt(part[2:], 10, 64)
			if err != nil {
				return fmt.Errorf("malformed timestamp in signature header")
			}
			ts = v
		case strings.HasPrefix(part, "v1="):
			sig = part[3:]
		}
	}
	if ts == 0 || sig == "" {
		return fmt.Errorf("signature header missing t or v1 component")
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("signature timestamp outside tolerance")
		}
	}

	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
