package main

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/loyaltyledger/engine/httpapi"
	"github.com/loyaltyledger/engine/idgen"
	"github.com/loyaltyledger/engine/store/postgres"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the HTTP ingress surface (POST /v1/receipts, /v1/redeem, balances, config)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	_ = v.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger("serve")

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	store := postgres.New(db)
	server := httpapi.New(store.AsHTTPStore(), wallClock, idgen.New, logger)

	addr := v.GetString("serve.addr")
	logger.Info("listening", "addr", addr)
	return http.ListenAndServe(addr, server.Router())
}
