package main

import (
	validator "github.com/go-playground/validator/v10"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/config"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/classify"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/currency"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/global"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/job"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/logger"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/tenant"
)

// InitGlobal initializes the process-wide globals.
func InitGlobal() {
	initColNames()
	initValidator()
	initConfig()
}

// initColNames sets the collection names used by the pipeline.
func initColNames() {
	// Source collections (owned by the messaging platform)
	global.ColNames.Transactions = "transactions"
	global.ColNames.Accounts = "accounts"
	global.ColNames.Conversations = "conversations"
	global.ColNames.Orders = "orders"
	global.ColNames.DlrStatusCode = "dlr_status_code"

	// Report collections (owned by this process)
	global.ColNames.ErrorsPerDay = "errorsperday"
	global.ColNames.TransactionsPerType = "transactionspertype"
	global.ColNames.ConversationsByType = "conversations_account_type"
	global.ColNames.ConversationInsights = "conversationsinsightsdata"
	global.ColNames.OrdersByChannel = "orders_bychannel"
	global.ColNames.ExternalPayments = "external_payments"
}

func initValidator() {
	global.Validate = validator.New()
}

func initConfig() {
	global.ServerConfig = config.NewConfig()
	if global.ServerConfig == nil {
		logger.GetAppLogger().Fatal("Cannot load process configuration")
	}
}

// dataConfig holds the YAML-backed configuration loaded at startup.
type dataConfig struct {
	Tenants *tenant.Registry
	Rules   *classify.Cascade
	Rates   *currency.Table
	Remaps  *job.RemapSet
}

// InitDataConfig loads and validates the data-shaped configuration.
// Any failure here is fatal: the process refuses to run with a broken
// tenant registry, rule table or exchange table.
func InitDataConfig() *dataConfig {
	log := logger.GetAppLogger()
	cfg := global.ServerConfig

	tenants, err := tenant.LoadRegistry(cfg.TenantsFile, global.Validate)
	if err != nil {
		log.WithError(err).Fatal("Tenant registry failed to load")
	}

	rules, err := classify.LoadCascade(cfg.RulesFile, global.Validate)
	if err != nil {
		log.WithError(err).Fatal("Payment rules failed to load")
	}

	rates, err := currency.LoadTable(cfg.RatesFile, global.Validate)
	if err != nil {
		log.WithError(err).Fatal("Exchange rates failed to load")
	}

	remaps, err := job.LoadRemaps(cfg.RemapsFile, global.Validate)
	if err != nil {
		log.WithError(err).Fatal("Identity remaps failed to load")
	}

	log.WithField("tenants", len(tenants.Tenants)).
		WithField("rules", rules.Len()).
		Info("Data configuration loaded")

	return &dataConfig{Tenants: tenants, Rules: rules, Rates: rates, Remaps: remaps}
}

// allJobs returns every job in its run order. The SMS rollup runs
// first so the normalizer always sees the freshest rows last.
func allJobs() []job.Job {
	return []job.Job{
		job.NewSmsByDayJob(),
		job.NewErrorsByDayJob(),
		job.NewTransactionsPerTypeJob(),
		job.NewConversationsByChannelJob(),
		job.NewConversationInsightsJob(),
		job.NewOrdersByChannelJob(),
		job.NewPaymentLinksJob(),
		job.NewIdentityNormalizeJob(),
	}
}

// selectJobs filters the job list by the configured comma-separated
// names. An empty selection means all jobs.
func selectJobs(selection string, jobs []job.Job) []job.Job {
	if selection == "" {
		return jobs
	}
	wanted := make(map[string]bool)
	for _, name := range splitComma(selection) {
		wanted[name] = true
	}
	var out []job.Job
	for _, jb := range jobs {
		if wanted[jb.Name()] {
			out = append(out, jb)
			delete(wanted, jb.Name())
		}
	}
	for name := range wanted {
		logger.GetAppLogger().Warnf("Unknown job %q in UPDATER_JOBS, ignoring", name)
	}
	return out
}
