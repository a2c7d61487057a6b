package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vocdoni/payments-backend/api"
	"github.com/vocdoni/payments-backend/db"
	"github.com/vocdoni/payments-backend/stripe"
	"go.vocdoni.io/dvote/log"
)

func main() {
	log.Init("debug", "stdout", nil)
	// define flags
	flag.StringP("host", "h", "0.0.0.0", "listen address")
	flag.IntP("port", "p", 4242, "listen port")
	flag.String("mongo-url", "", "The URL of the MongoDB server")
	flag.String("mongo-db", "payments", "The name of the MongoDB database")
	flag.String("stripe-api-secret", "", "Stripe secret API key")
	flag.String("stripe-publishable-key", "", "Stripe publishable key")
	flag.String("stripe-webhook-secret", "", "Stripe webhook signing secret (empty disables verification)")
	flag.String("stripe-api-version", stripe.DefaultAPIVersion, "Stripe API version")
	// parse flags
	flag.Parse()
	// initialize Viper
	viper.SetEnvPrefix("PAYMENTS")
	// hyphenated flag names map to underscored env vars (PAYMENTS_MONGO_URL)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		panic(err)
	}
	viper.AutomaticEnv()
	// read the configuration
	host := viper.GetString("host")
	port := viper.GetInt("port")
	mongoURL := viper.GetString("mongo-url")
	mongoDB := viper.GetString("mongo-db")
	stripeConfig := &stripe.Config{
		APIKey:         viper.GetString("stripe-api-secret"),
		PublishableKey: viper.GetString("stripe-publishable-key"),
		WebhookSecret:  viper.GetString("stripe-webhook-secret"),
		APIVersion:     viper.GetString("stripe-api-version"),
	}
	if stripeConfig.APIKey == "" {
		log.Fatal("stripe-api-secret is required")
	}
	if stripeConfig.PublishableKey == "" {
		log.Fatal("stripe-publishable-key is required")
	}
	if stripeConfig.WebhookSecret == "" {
		log.Warnf("no webhook signing secret configured, webhook payloads will NOT be verified")
	}
	// initialize the MongoDB database
	database, err := db.New(mongoURL, mongoDB)
	if err != nil {
		log.Fatalf("could not create the MongoDB database: %v", err)
	}
	defer database.Close()
	// create the Stripe service, with the database as payment repository
	// and durable webhook event store
	stripeService, err := stripe.NewService(stripeConfig, database, database)
	if err != nil {
		log.Fatalf("could not create the Stripe service: %v", err)
	}
	// create the local API server
	api.New(&api.Config{
		Host:           host,
		Port:           port,
		Stripe:         stripeService,
		PublishableKey: stripeConfig.PublishableKey,
	}).Start()
	// wait forever, as the server is running in a goroutine
	log.Infow("server started", "host", host, "port", port)
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
