package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/Wilyos/sistemas-box/configs"
	"github.com/Wilyos/sistemas-box/internal/adapter/cache"
	"github.com/Wilyos/sistemas-box/internal/adapter/catalog"
	"github.com/Wilyos/sistemas-box/internal/adapter/gateway/wompi"
	httpapi "github.com/Wilyos/sistemas-box/internal/adapter/http"
	"github.com/Wilyos/sistemas-box/internal/adapter/http/middleware"
	"github.com/Wilyos/sistemas-box/internal/adapter/kafka"
	"github.com/Wilyos/sistemas-box/internal/adapter/mail"
	"github.com/Wilyos/sistemas-box/internal/adapter/queue"
	"github.com/Wilyos/sistemas-box/internal/adapter/repo"
	"github.com/Wilyos/sistemas-box/internal/adapter/storage"
	"github.com/Wilyos/sistemas-box/internal/bootstrap"
	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/Wilyos/sistemas-box/internal/logging"
	"github.com/Wilyos/sistemas-box/internal/security"
	"github.com/Wilyos/sistemas-box/internal/usecase"
)

type App struct {
	Server *http.Server
}

// paymentEvents and resendCommands run the handler in-process when no broker is configured.
type paymentEvents func(ctx context.Context, msg usecase.PaymentStatusChangedMsg) error

func (f paymentEvents) PublishPaymentEvent(ctx context.Context, msg usecase.PaymentStatusChangedMsg) error {
	return f(ctx, msg)
}

type resendCommands func(ctx context.Context, msg usecase.NotificationResendMsg) error

func (f resendCommands) PublishResend(ctx context.Context, msg usecase.NotificationResendMsg) error {
	return f(ctx, msg)
}

// InitWithConfig wires every adapter and use case. Background consumers live until ctx ends.
func InitWithConfig(ctx context.Context, cfg configs.Config) (*App, func(), error) {
	l := logging.Init(cfg.App.Name, cfg.App.LogFile, cfg.App.LogLevel)
	l.Info("storefront-api: starting up")

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, nil, err
	}

	db, err := bootstrap.OpenMySQL(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() { _ = db.Close() })

	rdb, err := bootstrap.OpenRedis(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() { _ = rdb.Close() })

	// storage
	var blobs usecase.BlobStore
	switch cfg.Upload.Backend {
	case "gcs":
		client, closeGCS, err := InitGCS(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, closeGCS)
		if blobs, err = storage.NewGCSBlobStore(client, cfg.Upload.Bucket, "logos/"); err != nil {
			return fail(err)
		}
	default:
		if blobs, err = storage.NewDiskBlobStore(cfg.Upload.Dir); err != nil {
			return fail(err)
		}
	}

	// catalog stays nil without a project so client prices are kept
	var prices usecase.Catalog
	if cfg.Firestore.ProjectID != "" {
		fs, closeFS, err := InitFirestore(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, closeFS)
		prices = catalog.NewFirestoreCatalog(fs, cfg.Firestore.Collection)
	}

	drafts := cache.NewRedisDraftStore(rdb, cfg.Checkout.DraftTTL)
	sessions := cache.NewRedisSessionStore(rdb, cfg.Checkout.DraftTTL)
	idem := cache.NewRedisIdempotencyStore(rdb, cfg.Checkout.IdempotencyTTL).
		WithScopeTTL(usecase.ConfirmScope, cfg.Checkout.DraftTTL)
	index := cache.NewRedisAttachmentIndex(rdb, cfg.Checkout.DraftTTL)
	outcomes := cache.NewRedisOutcomeBroadcaster(rdb)
	ledger := repo.NewMySQLOrderLedger(db)

	gateway := wompi.NewClient(wompi.Config{
		BaseURL:          cfg.Gateway.BaseURL,
		CheckoutBaseURL:  cfg.Gateway.CheckoutBaseURL,
		PrivateKey:       cfg.Gateway.PrivateKey,
		RedirectBaseURL:  cfg.Frontend.BaseURL,
		Timeout:          cfg.Gateway.Timeout,
		BreakerFailures:  cfg.Gateway.BreakerFailures,
		BreakerOpenDelay: cfg.Gateway.BreakerOpenDelay,
	}, nil)

	if cfg.Mail.SendGridAPIKey == "" {
		l.Warn("mail.sendgrid_api_key is empty; order notifications will fail and stay retryable")
	}
	notifier := mail.NewSendGridNotifier(mail.Config{
		APIKey:    cfg.Mail.SendGridAPIKey,
		From:      cfg.Mail.From,
		FromName:  cfg.Mail.FromName,
		Recipient: cfg.Mail.DefaultRecipient,
		Currency:  cfg.Checkout.Currency,
	}, nil)

	uploads := usecase.NewUploadAttachment(blobs, index, cfg.Upload.MaxBytes)
	confirm := usecase.NewConfirmPayment(drafts, idem, uploads, notifier, ledger,
		cfg.Checkout.Currency, cfg.Checkout.MinorUnitExponent, cfg.WhatsApp.Number)
	checkout := usecase.NewCheckoutSession(drafts, sessions, idem, gateway, uploads, confirm, prices, outcomes,
		domain.NewReferenceGenerator(nil), usecase.CheckoutConfig{
			LotSize:           cfg.Checkout.LotSize,
			RequireAttachment: cfg.Checkout.RequireAttachment,
			Currency:          cfg.Checkout.Currency,
			MinorUnitExponent: cfg.Checkout.MinorUnitExponent,
			TotalTolerance:    cfg.Checkout.TotalTolerance,
		})
	request := usecase.NewRequestPayment(gateway, cfg.Checkout.Currency, cfg.Checkout.MinorUnitExponent,
		cfg.Checkout.TotalTolerance)
	apply := usecase.NewApplyPaymentEvent(ledger)

	// payment events: kafka when configured, otherwise applied inline
	var events usecase.PaymentEventPublisher = paymentEvents(apply.Handle)
	if len(cfg.Kafka.Brokers) > 0 {
		closeKafka, producer, err := setupKafka(ctx, cfg, apply)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, closeKafka)
		events = producer
	}

	// resend commands: rabbitmq when configured, otherwise handled inline
	var resend *usecase.ResendNotification
	var commands usecase.NotificationCommandPublisher = resendCommands(func(ctx context.Context, msg usecase.NotificationResendMsg) error {
		return resend.Handle(ctx, msg)
	})
	if cfg.Rabbit.URL != "" {
		closeRabbit, producer, err := setupRabbit(ctx, cfg, func(ctx context.Context, msg usecase.NotificationResendMsg) error {
			return resend.Handle(ctx, msg)
		})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, closeRabbit)
		commands = producer
	}
	resend = usecase.NewResendNotification(ledger, uploads, notifier, commands)

	clients := make([]security.Client, 0, len(cfg.Security.Clients))
	for _, c := range cfg.Security.Clients {
		clients = append(clients, security.Client{ID: c.ID, Secret: c.Secret, Perms: c.Perms, Enabled: !c.Disabled})
	}

	timeout := cfg.HTTP.RequestTimeout
	router := httpapi.NewRouter(httpapi.Handlers{
		Checkout: httpapi.NewCheckoutHandler(checkout, timeout, cfg.Upload.MaxBytes),
		Payment:  httpapi.NewPaymentHandler(request, confirm, uploads, timeout, cfg.Upload.MaxBytes),
		Webhook:  httpapi.NewWebhookHandler(cfg.Gateway.EventsSecret, events),
		Orders:   httpapi.NewOrderHandler(ledger, resend),
		Token: httpapi.NewTokenHandler(httpapi.TokenConfig{
			Secret:   cfg.Security.JWTSecret,
			Issuer:   cfg.Security.Issuer,
			Audience: cfg.Security.Audience,
			TTL:      cfg.Security.TTL,
		}, security.NewClients(clients)),
	}, middleware.NewAuthz(cfg.Security.JWTSecret, cfg.Security.Issuer, cfg.Security.Audience),
		logging.New("http"), cfg.Frontend.BaseURL)

	srv := &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	return &App{Server: srv}, cleanup, nil
}

func setupKafka(ctx context.Context, cfg configs.Config, apply *usecase.ApplyPaymentEvent) (func(), *kafka.Producer, error) {
	sp, err := kafka.NewSyncProducer(cfg.Kafka.Brokers)
	if err != nil {
		return nil, nil, err
	}
	producer := kafka.NewProducer(sp, cfg.Kafka.TopicEvents)

	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		_ = producer.Close()
		return nil, nil, err
	}
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.TopicEvents}, apply.Handle)
	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Base().Error("kafka consumer stopped", "err", err)
		}
	}()

	return func() {
		_ = grp.Close()
		_ = producer.Close()
	}, producer, nil
}

func setupRabbit(ctx context.Context, cfg configs.Config,
	handle func(context.Context, usecase.NotificationResendMsg) error) (func(), *queue.RabbitProducer, error) {
	conn, err := bootstrap.OpenRabbit(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeConn := func() { _ = conn.Close() }

	topo := queue.Topology{Exchange: cfg.Rabbit.Exchange, RoutingKey: cfg.Rabbit.RoutingKey, Queue: cfg.Rabbit.Queue}
	pubCh, err := conn.Channel()
	if err != nil {
		closeConn()
		return nil, nil, err
	}
	producer, err := queue.NewRabbitProducer(pubCh, topo)
	if err != nil {
		closeConn()
		return nil, nil, err
	}

	subCh, err := conn.Channel()
	if err != nil {
		closeConn()
		return nil, nil, err
	}
	router := queue.NewRouter(subCh, queue.WithPrefetch(10))
	router.Register(cfg.Rabbit.Queue, queue.JSONHandler[usecase.NotificationResendMsg]{HandleFunc: handle})
	if err := router.Start(ctx); err != nil {
		closeConn()
		return nil, nil, err
	}
	return closeConn, producer, nil
}
