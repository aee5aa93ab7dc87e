package cmd

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	coreconfig "github.com/AzielCF/az-desk/core/config"
	coreDB "github.com/AzielCF/az-desk/core/database"
	"github.com/AzielCF/az-desk/infrastructure/amqp"
	"github.com/AzielCF/az-desk/infrastructure/cloudapi"
	"github.com/AzielCF/az-desk/infrastructure/valkey"
	"github.com/AzielCF/az-desk/infrastructure/whatsapp"
	"github.com/AzielCF/az-desk/pkg/dispatchgate"
	"github.com/AzielCF/az-desk/pkg/utils"
	"github.com/AzielCF/az-desk/ticketing/application"
	"github.com/AzielCF/az-desk/ticketing/domain"
	"github.com/AzielCF/az-desk/ticketing/repository"
	"github.com/AzielCF/az-desk/ticketing/usecase"
	"github.com/AzielCF/az-desk/ui/rest"
	"github.com/AzielCF/az-desk/ui/websocket"
)

var (
	appCtx    context.Context
	appCancel context.CancelFunc

	db *gorm.DB

	// Repositorios
	contactRepo     *repository.ContactGormRepository
	ticketRepo      *repository.TicketGormRepository
	messageRepo     *repository.MessageGormRepository
	channelRepo     *repository.ChannelGormRepository
	queueRepo       *repository.QueueGormRepository
	integrationRepo *repository.IntegrationGormRepository
	presenceStore   domain.PresenceStore

	// Infraestructura
	vkClient    *valkey.Client
	amqpPub     *amqp.Publisher
	waManager   *whatsapp.Manager
	cloudClient *cloudapi.Client

	// Núcleo
	gate     *dispatchgate.Gate
	fanout   *application.Fanout
	pipeline *application.Pipeline
	ticketUC usecase.ITicketUsecase

	serverID string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "az-desk",
	Short: "Multi-tenant WhatsApp helpdesk core",
	Long: `az-desk unifies the WhatsApp multi-device socket and the Meta Cloud API
into one inbound pipeline: contacts, tickets, messages and acks.`,
}

func init() {
	// .env primero; las variables ya exportadas ganan.
	_ = godotenv.Load()

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()
	cobra.OnInitialize(initApp)
}

func initFlags() {
	rootCmd.PersistentFlags().StringP(
		"port", "p", "3000",
		"change port number with --port <number> | example: --port=8080",
	)
	rootCmd.PersistentFlags().BoolP(
		"debug", "d", false,
		"hide or displaying log with --debug <true/false> | example: --debug=true",
	)
	rootCmd.PersistentFlags().StringSliceP(
		"basic-auth", "b", nil,
		"basic auth credential | -b=yourUsername:yourPassword",
	)
	rootCmd.PersistentFlags().Int(
		"gate-workers", 0,
		"number of concurrent pipeline workers --gate-workers <number> | example: --gate-workers=30",
	)
	rootCmd.PersistentFlags().Int(
		"gate-queue-size", 0,
		"queue size per pipeline worker --gate-queue-size <number> | example: --gate-queue-size=1500",
	)

	_ = viper.BindPFlag("app_port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("app_debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("app_basic_auth", rootCmd.PersistentFlags().Lookup("basic-auth"))
	_ = viper.BindPFlag("gate_workers", rootCmd.PersistentFlags().Lookup("gate-workers"))
	_ = viper.BindPFlag("gate_queue_size", rootCmd.PersistentFlags().Lookup("gate-queue-size"))
}

// applyFlagOverrides deja que los flags de cobra pisen lo que vino del entorno.
func applyFlagOverrides(cfg *coreconfig.Config) {
	if rootCmd.PersistentFlags().Changed("port") {
		cfg.App.Port = viper.GetString("app_port")
	}
	if rootCmd.PersistentFlags().Changed("debug") {
		cfg.App.Debug = viper.GetBool("app_debug")
	}
	if rootCmd.PersistentFlags().Changed("basic-auth") {
		cfg.App.BasicAuth = viper.GetStringSlice("app_basic_auth")
	}
	if v := viper.GetInt("gate_workers"); v > 0 {
		cfg.Gate.Workers = v
	}
	if v := viper.GetInt("gate_queue_size"); v > 0 {
		cfg.Gate.QueueSize = v
	}
}

func initApp() {
	cfg, err := coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("[APP] Failed to load configuration: %v", err)
	}
	applyFlagOverrides(cfg)

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := utils.CreateFolder(cfg.Paths.Storages, cfg.Paths.Media); err != nil {
		logrus.Errorln(err)
	}

	serverID = utils.GetPersistentServerID(cfg.App.ServerID, cfg.Paths.Storages)
	appCtx, appCancel = context.WithCancel(context.Background())

	// Base de datos principal
	db, err = coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("[APP] Failed to open database: %v", err)
	}
	if err := repository.Migrate(appCtx, db); err != nil {
		logrus.Fatalf("[APP] Failed to migrate schema: %v", err)
	}

	contactRepo = repository.NewContactGormRepository(db)
	ticketRepo = repository.NewTicketGormRepository(db)
	messageRepo = repository.NewMessageGormRepository(db)
	channelRepo = repository.NewChannelGormRepository(db)
	queueRepo = repository.NewQueueGormRepository(db)
	integrationRepo = repository.NewIntegrationGormRepository(db)

	// Valkey (opcional): presencia distribuida y pub/sub del hub websocket.
	if cfg.Database.ValkeyEnabled {
		vkClient, err = valkey.NewClient(valkey.Config{
			Address:   cfg.Database.ValkeyAddress,
			Password:  cfg.Database.ValkeyPassword,
			DB:        cfg.Database.ValkeyDB,
			KeyPrefix: cfg.Database.ValkeyKeyPrefix,
		})
		if err != nil {
			logrus.Warnf("[APP] Valkey unavailable, falling back to in-memory presence: %v", err)
			vkClient = nil
		}
	}
	if vkClient != nil {
		presenceStore = repository.NewValkeyPresenceStore(vkClient)
	} else {
		presenceStore = repository.NewMemoryPresenceStore()
	}

	// Gate de despacho: serializa por conversación, paraleliza entre ellas.
	gate = dispatchgate.New(cfg.Gate.Workers, cfg.Gate.QueueSize)
	gate.Start(appCtx)
	rest.SetStatsGate(gate)

	// Fanout hacia las bandejas y, si hay broker, hacia AMQP.
	sinks := []application.Sink{websocket.NewSink()}
	if cfg.AMQP.URL != "" {
		amqpPub, err = amqp.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			logrus.Warnf("[APP] AMQP unavailable, events will not be brokered: %v", err)
		} else {
			sinks = append(sinks, amqpPub)
		}
	}
	fanout = application.NewFanout(sinks...)

	notifier := application.NewIntegrationNotifier(integrationRepo, queueRepo, cfg.Integration.Timeout)

	cloudClient = cloudapi.NewClient(cloudapi.Config{
		GraphBaseURL: cfg.Cloud.GraphBaseURL,
		GraphVersion: cfg.Cloud.GraphVersion,
		SendTimeout:  cfg.Cloud.SendTimeout,
		MediaDir:     cfg.Paths.Media,
		MaxBytes:     cfg.Cloud.MediaMaxBytes,
	}, channelRepo)

	// El manager del socket necesita el pipeline y el pipeline necesita el
	// fetcher del socket; el router de media se enlaza en dos pasos.
	mediaRouter := application.NewMediaRouter(nil, cloudClient)

	pipeline = application.NewPipeline(
		gate,
		application.NewContactResolver(contactRepo),
		application.NewTicketResolver(ticketRepo, queueRepo, presenceStore),
		messageRepo,
		application.NewStatusReconciler(messageRepo),
		fanout,
		notifier,
		mediaRouter,
	)

	logLevel := "WARN"
	if cfg.App.Debug {
		logLevel = "DEBUG"
	}
	waURI := "file:" + cfg.Paths.Storages + "/whatsapp.db?_foreign_keys=on&_journal_mode=WAL"
	waManager, err = whatsapp.NewManager(appCtx, waURI, "sqlite3", cfg.Paths.Media, logLevel, pipeline)
	if err != nil {
		logrus.Fatalf("[APP] Failed to init whatsapp session store: %v", err)
	}
	mediaRouter.SetDirect(waManager)

	ticketUC = usecase.NewTicketUsecase(
		ticketRepo, contactRepo, messageRepo, channelRepo,
		waManager, cloudClient, fanout,
	)

	// Levantar las sesiones directas ya configuradas.
	go func() {
		time.Sleep(2 * time.Second)
		startDirectChannels(appCtx)
	}()
}

func startDirectChannels(ctx context.Context) {
	channels, err := channelRepo.ListByKind(ctx, domain.ChannelKindDirect)
	if err != nil {
		logrus.WithError(err).Error("[APP] Failed to list direct channels")
		return
	}
	for _, ch := range channels {
		if err := waManager.StartChannel(ctx, ch); err != nil {
			logrus.WithError(err).Errorf("[APP] Failed to start direct channel %s", ch.ID)
		}
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp performs a clean shutdown of all connections and services.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if waManager != nil {
		waManager.Stop()
	}
	if gate != nil {
		gate.Stop()
	}
	if amqpPub != nil {
		amqpPub.Close()
	}
	if vkClient != nil {
		vkClient.Close()
	}
	if appCancel != nil {
		appCancel()
	}

	logrus.Info("[APP] Application stopped cleanly.")
}

// parseBasicAuth valida el formato user:pass de las credenciales.
func parseBasicAuth(entries []string) map[string]string {
	account := make(map[string]string)
	for _, entry := range entries {
		parts := strings.Split(entry, ":")
		if len(parts) != 2 {
			logrus.Fatalln("Basic auth is not valid, please use the following format <user>:<secret>")
		}
		account[parts[0]] = parts[1]
	}
	return account
}
