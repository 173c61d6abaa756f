package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	Token     string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte, headers map[string]string) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		baseURL = envOr("CREWGATE_URL", "http://localhost:8080")
		token   = envOr("CREWGATE_TOKEN", "")
		cron    = envOr("CREWGATE_CRON_SECRET", "")
		out     = envOr("CREWGATE_OUT", "text")
	)

	root := &cobra.Command{
		Use:   "crewgatectl",
		Short: "CLI de operación para crewgate",
	}

	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del servidor (env CREWGATE_URL)")
	root.PersistentFlags().StringVar(&token, "token", token, "Access token JWT (env CREWGATE_TOKEN)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{BaseURL: baseURL, Token: token, OutFormat: out, HTTP: &http.Client{Timeout: 30 * time.Second}}
	syncCl := func() {
		cl.BaseURL = baseURL
		cl.Token = token
		cl.OutFormat = out
	}

	// ─── events ───
	eventsCmd := &cobra.Command{Use: "events", Short: "Security events"}

	var listLimit int
	var listType string
	listEventsCmd := &cobra.Command{
		Use:   "list",
		Short: "Listar eventos recientes",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncCl()
			path := fmt.Sprintf("/api/security/events?limit=%d", listLimit)
			if listType != "" {
				path += "&type=" + listType
			}
			status, body, err := cl.do("GET", path, nil, nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	listEventsCmd.Flags().IntVar(&listLimit, "limit", 50, "Máximo de eventos")
	listEventsCmd.Flags().StringVar(&listType, "type", "", "Filtrar por tipo de evento")

	var force bool
	escalateCmd := &cobra.Command{
		Use:   "escalate <event-id>",
		Short: "Escalar un evento a incidente",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			syncCl()
			body, _ := json.Marshal(map[string]any{"force": force})
			status, resp, err := cl.do("POST", "/api/security/events/"+args[0]+"/escalate", body, nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("escalate fallo: status=%d body=%s", status, string(resp))
			}
			cl.print(status, resp)
			return nil
		},
	}
	escalateCmd.Flags().BoolVar(&force, "force", false, "Escalar aunque la severidad no lo permita")

	eventsCmd.AddCommand(listEventsCmd, escalateCmd)

	// ─── incidents ───
	incidentsCmd := &cobra.Command{Use: "incidents", Short: "Incidentes"}

	listIncidentsCmd := &cobra.Command{
		Use:   "list",
		Short: "Listar incidentes",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncCl()
			status, body, err := cl.do("GET", "/api/security/incidents", nil, nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}

	var notes string
	transitionCmd := &cobra.Command{
		Use:   "transition <incident-id> <state>",
		Short: "Transicionar un incidente (acknowledged|investigating|resolved|rejected|false_positive)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			syncCl()
			body, _ := json.Marshal(map[string]any{"state": args[1], "notes": notes})
			status, resp, err := cl.do("POST", "/api/security/incidents/"+args[0]+"/transition", body, nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("transition fallo: status=%d body=%s", status, string(resp))
			}
			cl.print(status, resp)
			return nil
		},
	}
	transitionCmd.Flags().StringVar(&notes, "notes", "", "Notas de la transición")

	incidentsCmd.AddCommand(listIncidentsCmd, transitionCmd)

	// ─── sweep ───
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Disparar el retention sweep (requiere cron secret)",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncCl()
			if cron == "" {
				return fmt.Errorf("falta cron secret (flag --cron-secret o env CREWGATE_CRON_SECRET)")
			}
			status, resp, err := cl.do("POST", "/api/cron/sweep", nil, map[string]string{"X-Cron-Secret": cron})
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("sweep fallo: status=%d body=%s", status, string(resp))
			}
			cl.print(status, resp)
			return nil
		},
	}
	sweepCmd.Flags().StringVar(&cron, "cron-secret", cron, "Secret del cron (env CREWGATE_CRON_SECRET)")

	root.AddCommand(eventsCmd, incidentsCmd, sweepCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
