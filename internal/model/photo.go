package model

import "time"

// Photo is a compressed image asset persisted at capture time so the
// evidence survives until it is uploaded.
type Photo struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	ContentType string    `json:"contentType"`
	Data        []byte    `json:"data"`
	Thumbnail   []byte    `json:"thumbnail,omitempty"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Uploaded    bool      `json:"uploaded"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (p Photo) RecordKey() string { return p.ID }
