package schemas

import "time"

// Cookie mirrors the browser cookie fields we serialize, including HttpOnly
// cookies which are invisible to in-page script.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// StorageState is an immutable snapshot of a logged-in session: cookies plus
// localStorage keyed by origin. It is written once after a successful login
// and only ever read afterwards, so sessions cannot contaminate one another.
type StorageState struct {
	Cookies      []Cookie                     `json:"cookies"`
	LocalStorage map[string]map[string]string `json:"local_storage"`
	CapturedAt   time.Time                    `json:"captured_at"`
}

// Empty reports whether the snapshot carries no session data at all.
func (s *StorageState) Empty() bool {
	return s == nil || (len(s.Cookies) == 0 && len(s.LocalStorage) == 0)
}
