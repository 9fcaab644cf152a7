package r2s3

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

const (
	sigAlgorithm  = "AWS4-HMAC-SHA256"
	amzDateLayout = "20060102T150405Z"
	signedHeaders = "host;x-amz-content-sha256;x-amz-date"
)

// signer implements AWS Signature Version 4 for requests without a query
// string.
type signer struct {
	keyID, secret   string
	region, service string
}

func (s signer) scope(day string) string {
	return day + "/" + s.region + "/" + s.service + "/aws4_request"
}

// sign sets x-amz-date, x-amz-content-sha256 and Authorization on req.
func (s signer) sign(req *http.Request, payloadHash string, now time.Time) {
	stamp := now.Format(amzDateLayout)
	day := stamp[:8]
	req.Header.Set("x-amz-date", stamp)
	req.Header.Set("x-amz-content-sha256", payloadHash)

	canonical := req.Method + "\n" +
		req.URL.EscapedPath() + "\n" +
		"\n" +
		"host:" + req.URL.Host + "\n" +
		"x-amz-content-sha256:" + payloadHash + "\n" +
		"x-amz-date:" + stamp + "\n" +
		"\n" +
		signedHeaders + "\n" +
		payloadHash
	sum := sha256.Sum256([]byte(canonical))
	toSign := strings.Join([]string{sigAlgorithm, stamp, s.scope(day), hex.EncodeToString(sum[:])}, "\n")

	key := []byte("AWS4" + s.secret)
	for _, part := range []string{day, s.region, s.service, "aws4_request"} {
		key = mac(key, part)
	}
	sig := hex.EncodeToString(mac(key, toSign))
	req.Header.Set("Authorization", sigAlgorithm+
		" Credential="+s.keyID+"/"+s.scope(day)+
		", SignedHeaders="+signedHeaders+
		", Signature="+sig)
}

func mac(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}
