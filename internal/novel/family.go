package novel

import (
	"net/url"
	"strings"
)

// Family selects the decomposition strategy for an address.
type Family int

const (
	FamilyIdentity Family = iota
	FamilyKakuyomu        // sidebar driven
	FamilySyosetu         // episode count driven
	FamilyPixiv           // JSON listing driven
)

const (
	kakuyomuHost = "kakuyomu.jp"
	syosetuHost  = "ncode.syosetu.com"
	pixivHost    = "www.pixiv.net"
)

func (f Family) String() string {
	switch f {
	case FamilyKakuyomu:
		return "kakuyomu"
	case FamilySyosetu:
		return "syosetu"
	case FamilyPixiv:
		return "pixiv"
	default:
		return "identity"
	}
}

// Classify maps a host name to its family. Unknown hosts are FamilyIdentity.
func Classify(host string) Family {
	switch strings.ToLower(host) {
	case kakuyomuHost:
		return FamilyKakuyomu
	case syosetuHost:
		return FamilySyosetu
	case pixivHost:
		return FamilyPixiv
	default:
		return FamilyIdentity
	}
}

// ClassifyURL is Classify over the host of u.
func ClassifyURL(u *url.URL) Family {
	return Classify(u.Host)
}
