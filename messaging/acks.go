package messaging

import (
	"encoding/json"
	"fmt"
	"log"

	"clinicore/notify"
	"clinicore/store"
)

// SyncAck is the per-record verdict a downstream processor publishes
// after consuming a published record.
type SyncAck struct {
	RecordID int64  `json:"record_id"`
	Status   string `json:"status"`
	Detail   string `json:"detail"`
}

// SyncAckConsumer turns downstream rejections into application
// exceptions so they reach the mail digest and the event stream.
// An "ok" verdict needs no action; the record was already marked
// synced when its publication was acknowledged.
type SyncAckConsumer struct {
	db  *store.DB
	hub *notify.Hub
}

func NewSyncAckConsumer(db *store.DB, hub *notify.Hub) *SyncAckConsumer {
	return &SyncAckConsumer{db: db, hub: hub}
}

func (c *SyncAckConsumer) Start(client *Client, topic string) error {
	return client.Subscribe(topic, c.handle)
}

func (c *SyncAckConsumer) handle(topic string, payload []byte) {
	var ack SyncAck
	if err := json.Unmarshal(payload, &ack); err != nil {
		log.Printf("messaging: undecodable sync ack on %s: %v", topic, err)
		return
	}
	if ack.RecordID == 0 {
		log.Printf("messaging: sync ack without record id on %s", topic)
		return
	}
	if ack.Status == "ok" {
		return
	}

	msg := fmt.Sprintf("downstream sync rejected record %d: %s", ack.RecordID, ack.Detail)
	if err := c.db.CreateAppException(&store.AppException{Message: msg, Stack: string(payload)}); err != nil {
		log.Printf("messaging: record sync rejection: %v", err)
	}
	if c.hub != nil {
		c.hub.Publish("sync-error", msg)
	}
}
