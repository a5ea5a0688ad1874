package protocol

import (
	"errors"
	"strings"
)

// Topic is a broadcast channel name: request:{id}, user:{id} or
// category:{id}.
type Topic string

const (
	KindRequest  = "request"
	KindUser     = "user"
	KindCategory = "category"
)

var ErrInvalidTopic = errors.New("protocol: invalid topic")

func RequestTopic(id string) Topic  { return Topic(KindRequest + ":" + id) }
func UserTopic(id string) Topic     { return Topic(KindUser + ":" + id) }
func CategoryTopic(id string) Topic { return Topic(KindCategory + ":" + id) }

// Parse splits t into its kind and id, rejecting unknown kinds and empty ids.
func (t Topic) Parse() (kind, id string, err error) {
	kind, id, ok := strings.Cut(string(t), ":")
	if !ok || id == "" {
		return "", "", ErrInvalidTopic
	}
	switch kind {
	case KindRequest, KindUser, KindCategory:
		return kind, id, nil
	}
	return "", "", ErrInvalidTopic
}

func (t Topic) String() string { return string(t) }
