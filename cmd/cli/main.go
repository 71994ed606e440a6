package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"facebook-video-server/internal/cache"
	"facebook-video-server/internal/config"
	"facebook-video-server/internal/extractor"
	"facebook-video-server/internal/resolver"
	"facebook-video-server/internal/scraper"
	"facebook-video-server/internal/session"
	"facebook-video-server/pkg/models"
)

var (
	configPath string
	useAuth    bool
	asJSON     bool
)

var rootCmd = &cobra.Command{
	Use:   "fb-video",
	Short: "Extract direct media URLs from Facebook videos",
	Long: `fb-video resolves Facebook video pages to direct, playable media URLs.

It tries a yt-dlp style external resolver first and falls back to
rendering the page in a headless browser, mining the DOM, inline
scripts, and intercepted network traffic for video streams.`,
	Version: "1.0.0",
}

var extractCmd = &cobra.Command{
	Use:   "extract [url]",
	Short: "Extract media URLs from a Facebook video page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]
		if err := extractor.ValidateFacebookURL(url); err != nil {
			return err
		}

		cfg, sess, err := loadEnvironment()
		if err != nil {
			return err
		}

		res := resolver.New(
			cfg.Resolver.Path,
			cfg.Resolver.UserAgent,
			time.Duration(cfg.Resolver.TitleTimeout)*time.Second,
			time.Duration(cfg.Resolver.MediaTimeout)*time.Second,
			sess,
		)
		scr := scraper.New(cfg, sess, nil)
		orch := extractor.NewOrchestrator(res, scr,
			cache.New(time.Duration(cfg.Cache.TTLMinutes)*time.Minute), nil, nil)

		auth := useAuth && sess.Authenticated()
		if useAuth && !auth {
			fmt.Fprintln(os.Stderr, "No saved login session; extracting anonymously. Run 'fb-video login' first.")
		}

		result, err := orch.Extract(context.Background(), url, auth)
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Log in to Facebook and save the session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, sess, err := loadEnvironment()
		if err != nil {
			return err
		}

		scr := scraper.New(cfg, sess, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if len(args) == 0 {
			fmt.Println("Opening a browser window; log in to Facebook there.")
			if err := scr.ManualLogin(ctx); err != nil {
				return err
			}
		} else {
			fmt.Print("Password: ")
			var password string
			if _, err := fmt.Scanln(&password); err != nil {
				return fmt.Errorf("error reading password: %w", err)
			}
			if err := scr.Login(ctx, args[0], password); err != nil {
				return err
			}
		}

		fmt.Println("✅ Logged in; session saved.")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the saved Facebook session",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, sess, err := loadEnvironment()
		if err != nil {
			return err
		}
		if err := sess.Clear(); err != nil {
			return err
		}
		fmt.Println("Session cleared.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session status",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, sess, err := loadEnvironment()
		if err != nil {
			return err
		}
		if sess.Authenticated() {
			fmt.Println("Authenticated: yes")
		} else if sess.HasSavedCookies() {
			fmt.Println("Authenticated: no (saved cookies exist but carry no login)")
		} else {
			fmt.Println("Authenticated: no")
		}
		return nil
	},
}

func loadEnvironment() (*models.Config, *session.Manager, error) {
	configManager := config.NewManager()
	cfg, err := configManager.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading configuration: %w", err)
	}
	sess := session.NewManager(cfg.Session.CookieFile, cfg.Session.NetscapeFile, cfg.Session.CredentialsFile)
	return cfg, sess, nil
}

func printResult(result *models.ExtractionResult) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("Title: %s\n", result.Title)
	for _, f := range result.Formats {
		fmt.Printf("  [%d] %-15s %s\n", f.FormatID, f.Label, f.URL)
	}
	for _, t := range result.Thumbnails {
		fmt.Printf("  thumbnail: %s\n", t)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration directory")

	extractCmd.Flags().BoolVar(&useAuth, "auth", false, "Use the saved login session")
	extractCmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
