package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinicore/config"
	"clinicore/crypt"
	"clinicore/facility"
	"clinicore/idem"
	"clinicore/ingest"
	"clinicore/mailer"
	"clinicore/messaging"
	"clinicore/notify"
	"clinicore/store"
	"clinicore/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "clinicore.yaml", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println("clinicore", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("clinicore: database open (%s)", cfg.Database.Driver)

	// Identity cipher and facility map; both are fatal when broken.
	cipher, err := crypt.New(cfg.Security.EncryptionSecret)
	if err != nil {
		log.Fatalf("encryption secret: %v", err)
	}
	facilities, err := facility.Load(cfg.Security.FacilityMapper)
	if err != nil {
		log.Fatalf("facility mapper: %v", err)
	}
	log.Printf("clinicore: facility mapper loaded (%d scripts)", facilities.Len())

	// Event hub with optional Redis fanout
	hub := notify.NewHub()
	if bridge, err := notify.NewBridge(&cfg.Redis); err != nil {
		log.Printf("clinicore: redis not available (%v), running without event fanout", err)
	} else {
		hub.SetBridge(bridge)
		log.Printf("clinicore: redis event bridge connected (%s)", cfg.Redis.Address)
	}

	// Ingestion pipeline
	svc := ingest.NewService(db, cipher, facilities, cfg.Messaging.RecordsTopic)
	svc.Notify = func(rec *store.Record) {
		hub.Publish("record-accepted", fmt.Sprintf(`{"id":%d,"scriptid":%q}`, rec.ID, rec.ScriptID))
	}
	guard := idem.NewGuard(cfg.Idempotency.Window, cfg.Idempotency.WaitTimeout)

	// Messaging client
	msgClient := messaging.NewClient(&cfg.Messaging)
	if err := msgClient.Connect(); err != nil {
		log.Printf("clinicore: messaging connect failed (%v)", err)
	} else {
		log.Printf("clinicore: messaging connected (kafka)")
	}
	defer msgClient.Close()

	// Outbox drainer (accepted records out to downstream consumers)
	drainer := messaging.NewOutboxDrainer(db, msgClient, cfg.Messaging.OutboxDrainInterval)
	drainer.Start()
	defer drainer.Stop()

	// Downstream sync verdicts back in
	acks := messaging.NewSyncAckConsumer(db, hub)
	if msgClient.IsConnected() {
		if err := acks.Start(msgClient, cfg.Messaging.AcksTopic); err != nil {
			log.Printf("clinicore: sync ack subscribe failed: %v", err)
		}
	}

	// Exception reports in from field devices
	exceptions := messaging.NewExceptionSubscriber(&cfg.Messaging.MQTT, cfg.Messaging.ExceptionsTopic, db, hub)
	if err := exceptions.Connect(); err != nil {
		log.Printf("clinicore: mqtt connect failed (%v)", err)
	}
	defer exceptions.Close()

	// Exception mail digest
	digest := mailer.New(db, &cfg.Mail)
	if err := digest.Start(); err != nil {
		log.Fatalf("mailer: %v", err)
	}
	defer digest.Stop()

	// Web server
	handler, stopWeb := www.NewRouter(db, svc, guard, hub)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("clinicore: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("clinicore: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("clinicore: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("clinicore: stopped")
}
