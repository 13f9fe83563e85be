package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/big"
	"os"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/subcontract/contracts"
	"github.com/nspcc-dev/subcontract/deploy"
	"github.com/nspcc-dev/subcontract/host"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML host configuration (in-memory storage if omitted)")
	label := flag.String("label", "", "Label of the dumped environment (e.g. 'local')")
	rootDir := flag.String("out", "testdata", "Directory to write dumps to")
	withDeploy := flag.Bool("deploy", false, "Deploy bundled units from the new account before dumping")
	endowment := flag.Int64("endowment", 1000, "Parent unit endowment used with -deploy")
	version := flag.Uint("version", 1, "Child unit version used with -deploy")

	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() { _ = logger.Sync() }()

	if *label == "" {
		logger.Fatal("missing environment label")
	}

	childVersion, err := checkVersion(*version)
	if err != nil {
		logger.Fatal("invalid Child unit version", zap.Error(err))
	}

	err = os.MkdirAll(*rootDir, 0700)
	if err != nil {
		logger.Fatal("create root dir", zap.Error(err))
	}

	cfg := host.DefaultConfig()
	if *configPath != "" {
		cfg, err = host.LoadConfig(*configPath)
		if err != nil {
			logger.Fatal("load host config", zap.Error(err))
		}
	}

	h, err := host.NewFromConfig(cfg, host.Options{Logger: logger})
	if err != nil {
		logger.Fatal("init host", zap.Error(err))
	}

	err = _dump(logger, h, *rootDir, *label, *withDeploy, big.NewInt(*endowment), childVersion)
	if cErr := h.Close(); cErr != nil {
		err = multierr.Append(err, fmt.Errorf("close host: %w", cErr))
	}

	if err != nil {
		logger.Fatal("dump failed", zap.Error(err))
	}

	logger.Info("units are successfully dumped", zap.String("dir", *rootDir))
}

func checkVersion(v uint) (uint32, error) {
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%d overflows uint32", v)
	}

	return uint32(v), nil
}

func _dump(l *zap.Logger, h *host.Host, rootDir, label string, withDeploy bool, endowment *big.Int, version uint32) error {
	if withDeploy {
		err := deployUnits(l, h, endowment, version)
		if err != nil {
			return err
		}
	}

	id, err := h.Export(rootDir, label)
	if err != nil {
		return fmt.Errorf("export host state: %w", err)
	}

	l.Info("dump created", zap.Stringer("id", id))

	return nil
}

func deployUnits(l *zap.Logger, h *host.Host, endowment *big.Int, version uint32) error {
	acc, err := wallet.NewAccount()
	if err != nil {
		return fmt.Errorf("generate new account: %w", err)
	}

	ctx := context.Background()

	err = h.Mint(ctx, acc.ScriptHash(), endowment)
	if err != nil {
		return fmt.Errorf("mint resources to %s: %w", address.Uint160ToString(acc.ScriptHash()), err)
	}

	child, err := contracts.Child()
	if err != nil {
		return fmt.Errorf("read Child unit: %w", err)
	}

	parent, err := contracts.Parent()
	if err != nil {
		return fmt.Errorf("read Parent unit: %w", err)
	}

	res, err := deploy.Deploy(ctx, deploy.Prm{
		Logger:       l,
		Host:         h,
		LocalAccount: acc,
		ChildContract: deploy.ChildContractPrm{
			Common: deploy.CommonDeployPrm{Manifest: child.Manifest, Impl: child.Impl},
		},
		ParentContract: deploy.ParentContractPrm{
			Common:    deploy.CommonDeployPrm{Manifest: parent.Manifest, Impl: parent.Impl},
			Version:   version,
			Endowment: endowment,
		},
	})
	if err != nil {
		return fmt.Errorf("deploy bundled units: %w", err)
	}

	l.Info("bundled units deployed", zap.Stringer("parent", res.Parent), zap.Stringer("child", res.Constructor))

	return nil
}
