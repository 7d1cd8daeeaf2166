package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/prapanjan22-hub/garazzo/core/emergency"
	"github.com/prapanjan22-hub/garazzo/core/match"
	"github.com/prapanjan22-hub/garazzo/core/model"
	"github.com/prapanjan22-hub/garazzo/core/notify"
	"github.com/prapanjan22-hub/garazzo/infra/channels"
	"github.com/prapanjan22-hub/garazzo/infra/logger"
	"github.com/prapanjan22-hub/garazzo/internal/eventbus"
)

var (
	alertLat      float64
	alertLon      float64
	alertCategory string
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Run a synthetic emergency through the in-memory pipeline",
	Long: `Creates an incident against in-memory stores and logs the resulting
notification fan-out. Useful for validating templates and dispatch
configuration without a database or broker.`,
	RunE: injectAlert,
}

func init() {
	alertCmd.Flags().Float64Var(&alertLat, "lat", 12.9716, "incident latitude")
	alertCmd.Flags().Float64Var(&alertLon, "lon", 77.5946, "incident longitude")
	alertCmd.Flags().StringVar(&alertCategory, "category", "breakdown", "incident category")
	rootCmd.AddCommand(alertCmd)
}

// staticResponders serves a fixed candidate set around the injected alert.
type staticResponders struct {
	responders []model.Responder
}

func (s staticResponders) EligibleResponders(context.Context, model.Location, float64) ([]model.Responder, error) {
	return s.responders, nil
}

func injectAlert(cmd *cobra.Command, args []string) error {
	logg := logger.New("alert-command")

	token := "demo-device-token-0000000000000000000000000000"
	source := staticResponders{responders: []model.Responder{
		{ID: "resp-1", Name: "Demo Garage", Phone: "+15550100001", PushToken: token,
			Location: model.Location{Latitude: alertLat + 0.01, Longitude: alertLon}, Role: "garage"},
		{ID: "resp-2", Name: "Demo Mechanic", Phone: "+15550100002", PushToken: token,
			Location: model.Location{Latitude: alertLat, Longitude: alertLon + 0.02}, Role: "mechanic"},
	}}
	matcher, err := match.New(source)
	if err != nil {
		return fmt.Errorf("matcher: %w", err)
	}

	renderer := notify.NewRenderer(notify.DefaultTemplates(),
		notify.NewTemplateCache(time.Minute), time.Minute)
	dispatcher, err := notify.NewDispatcher(
		channels.NewDevPushSender(logger.New("push")),
		channels.NewDevSMSSender(logger.New("sms")),
		renderer, notify.Config{}, logger.New("notify"))
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}

	events := eventbus.NewTyped[emergency.IncidentEvent]()
	defer events.Close()
	svc, err := emergency.NewService(emergency.NewMemoryStore(), emergency.NewMemoryLiveStore(),
		matcher, dispatcher, events, emergency.Config{}, logger.New("emergency"))
	if err != nil {
		return fmt.Errorf("emergency service: %w", err)
	}

	inc, err := svc.HandleAlert(cmd.Context(), emergency.Alert{
		DeviceID: "demo-device",
		Location: model.Location{Latitude: alertLat, Longitude: alertLon, Address: "Demo Junction"},
		Category: alertCategory,
		Severity: "high",
	})
	if err != nil {
		return fmt.Errorf("handle alert: %w", err)
	}
	logg.Infof("incident %s created with status %s", inc.ID, inc.Status)
	return nil
}
