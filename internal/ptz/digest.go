package ptz

import (
	"crypto/md5"
	"fmt"
)

// digestResponse computes an RFC 2069-style HTTP Digest response value,
// grounded on the teacher pack's Hikvision PTZ client
// (doxx-NOLO/rivercam ptz-hikvision.go getDigestAuth), generalized into
// a standalone helper usable by any ONVIF-flavored HTTP device client.
func digestResponse(user, pass, method, uri, realm, nonce string) string {
	ha1 := md5Hex(fmt.Sprintf("%s:%s:%s", user, realm, pass))
	ha2 := md5Hex(fmt.Sprintf("%s:%s", method, uri))
	return md5Hex(fmt.Sprintf("%s:%s:%s", ha1, nonce, ha2))
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return fmt.Sprintf("%x", sum)
}

// digestAuthHeader builds the Authorization header value for a digest
// challenge response.
func digestAuthHeader(user, pass, method, uri, realm, nonce string) string {
	response := digestResponse(user, pass, method, uri, realm, nonce)
	return fmt.Sprintf(`Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
		user, realm, nonce, uri, response)
}
