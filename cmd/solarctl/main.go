package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"solar-workflow-api/config"
	"solar-workflow-api/services"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app holds what every subcommand needs once the store is open.
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	log     *logrus.Logger
	backend *config.Backend
	closers []func()

	users       *services.UserService
	clients     *services.ClientService
	maintenance *services.MaintenanceService
	followUps   *services.FollowUpService
	phones      *services.PhoneImportService
}

func (a *app) open(ctx context.Context) error {
	cfg, err := config.FromViper(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, logFile, logWriter := config.InitLogging(cfg)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	a.log = logger
	if logFile != nil {
		a.closers = append(a.closers, func() { logFile.Close() })
	}

	backend, err := config.OpenStore(ctx, cfg, logWriter)
	if err != nil {
		return err
	}
	a.backend = backend
	a.closers = append(a.closers, func() { backend.Close() })

	objects, err := config.OpenObjectStorage(ctx, cfg)
	if err != nil {
		return err
	}

	var locker services.Locker = services.NoopLocker{}
	rdb, err := config.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, running without a lock")
	} else if rdb != nil {
		a.closers = append(a.closers, func() { rdb.Close() })
		locker = services.NewRedisLocker(rdb)
	}

	st := backend.Store
	a.users = services.NewUserService(st, services.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpireHours), logger)
	a.clients = services.NewClientService(st, objects, logger, cfg.PhoneRegion)
	a.maintenance = services.NewMaintenanceService(st, backend.DB, a.users, a.clients, logger)
	a.followUps = services.NewFollowUpService(st, config.NewMailer(cfg.SMTP), logger)
	a.phones = services.NewPhoneImportService(st, locker, logger, cfg.PhoneRegion, cfg.ImportBatchDelay)
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "solarctl",
		Short:         "Maintenance tasks for the solar workflow API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return a.open(cmd.Context())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(
		newCreateTablesCmd(a),
		newSeedCmd(a),
		newFixAssignmentsCmd(a),
		newFixLegacyCmd(a),
		newImportPhonesCmd(a),
		newSendRemindersCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{v: config.NewViper()}
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	if err != nil {
		a.close()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
