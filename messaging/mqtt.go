package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"clinicore/config"
	"clinicore/notify"
	"clinicore/store"
)

// ExceptionSubscriber receives crash reports from field devices over
// MQTT and stores them for the mail digest. Devices in clinics publish
// over MQTT because their uplink is too flaky for request/response.
type ExceptionSubscriber struct {
	db     *store.DB
	hub    *notify.Hub
	topic  string
	client mqtt.Client
}

func NewExceptionSubscriber(cfg *config.MQTTConfig, topic string, db *store.DB, hub *notify.Hub) *ExceptionSubscriber {
	s := &ExceptionSubscriber{db: db, hub: hub, topic: topic}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(10 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		log.Printf("messaging: mqtt connected, subscribing to %s", topic)
		if token := c.Subscribe(topic, 1, s.handle); token.Wait() && token.Error() != nil {
			log.Printf("messaging: mqtt subscribe: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.Printf("messaging: mqtt connection lost: %v", err)
	}

	s.client = mqtt.NewClient(opts)
	return s
}

// Connect starts the connection attempt; retry is handled by the client.
func (s *ExceptionSubscriber) Connect() error {
	token := s.client.Connect()
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (s *ExceptionSubscriber) handle(_ mqtt.Client, msg mqtt.Message) {
	var e store.AppException
	if err := json.Unmarshal(msg.Payload(), &e); err != nil {
		log.Printf("messaging: bad exception payload on %s: %v", msg.Topic(), err)
		return
	}
	if e.Message == "" {
		log.Printf("messaging: exception without message dropped")
		return
	}
	if err := s.db.CreateAppException(&e); err != nil {
		log.Printf("messaging: store exception: %v", err)
		return
	}
	if s.hub != nil {
		s.hub.Publish("exception", fmt.Sprintf(`{"id":%d}`, e.ID))
	}
}

func (s *ExceptionSubscriber) Close() {
	s.client.Disconnect(250)
}
