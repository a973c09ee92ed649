package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/scidms/dms/schema"
	"github.com/scidms/dms/store"
)

// Bootstrap schema import: the prototype auto-imports a default schema file
// for a well-known database name at process start
// (GG.schema_import_maybe('dms0', ...)). -schema/-db mirror that, importing
// a schema at startup only if that database doesn't have one yet.
func bootstrapSchema(s *Server, dbName, schemaPath string, verbose bool) error {
	if schemaPath == "" {
		return nil
	}
	if s.schemas.Has(dbName) {
		if verbose {
			s.log.Infow("bootstrap schema skipped, already present", "db", dbName)
		}
		return nil
	}
	raw, err := os.ReadFile(schemaPath)
	if err != nil {
		return err
	}
	sch, err := schema.Parse(raw)
	if err != nil {
		return err
	}
	st, err := store.NewMemStore(sch.Types())
	if err != nil {
		return err
	}
	s.schemas.Set(dbName, sch)
	s.mu.Lock()
	s.stores[dbName] = st
	s.mu.Unlock()
	s.log.Infow("bootstrap schema imported", "db", dbName, "path", schemaPath, "types", len(sch.Types()))
	return nil
}

func main() {
	addr := flag.String("addr", ":8420", "address to listen on")
	dbName := flag.String("db", "dms0", "database name to bootstrap a schema into")
	schemaPath := flag.String("schema", "", "path to a schema JSON file to import at startup if -db has none yet")
	verbose := flag.Bool("verbose", false, "enable verbose (debug-level) logging")
	flag.Parse()

	zapCfg := zap.NewProductionConfig()
	if *verbose {
		zapCfg = zap.NewDevelopmentConfig()
	}
	logger, err := zapCfg.Build()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	srv := NewServer(sugar, *verbose)

	if err := bootstrapSchema(srv, *dbName, *schemaPath, *verbose); err != nil {
		sugar.Fatalw("failed to bootstrap schema", "error", err)
	}

	sugar.Infow("listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, srv); err != nil {
		sugar.Fatalw("server exited", "error", err)
	}
}
