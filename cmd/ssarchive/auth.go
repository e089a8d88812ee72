package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ssarchive/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored site sessions",
	Long: `Manage the session cookies used for authenticated fetches.

Sessions are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variable SSARCHIVE_SESSION (read-only fallback)

Never share your session cookie or config files!`,
}

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login [profile]",
	Short: "Store a session cookie securely",
	Long: `Store a session cookie in the system keychain or encrypted file.

To get the cookie value:
1. Log into the site in your browser
2. Open Developer Tools (F12) > Application/Storage > Cookies
3. Copy the full cookie header for the site

The cookie is read without echoing to the terminal.`,
	Example: `  # Interactive login under the default profile
  ssarchive auth login

  # Store under a named profile
  ssarchive auth login myprofile`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogin,
}

// authListCmd represents the auth list command
var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored session profiles",
	Long:  `List all stored session profiles with the cookie value masked.`,
	RunE:  runAuthList,
}

// authRemoveCmd represents the auth remove command
var authRemoveCmd = &cobra.Command{
	Use:   "remove <profile>",
	Short: "Remove a stored session",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthRemove,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authListCmd)
	authCmd.AddCommand(authRemoveCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	profileName := "default"
	if len(args) > 0 {
		profileName = args[0]
	}

	fmt.Print("Session cookie (input hidden): ")
	cookieBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read cookie: %w", err)
	}
	cookie := strings.TrimSpace(string(cookieBytes))
	if cookie == "" {
		return fmt.Errorf("session cookie is required")
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("User agent (optional, Enter for default): ")
	userAgent, _ := reader.ReadString('\n')

	session := &auth.Session{
		Profile:   profileName,
		Cookie:    cookie,
		UserAgent: strings.TrimSpace(userAgent),
	}
	if err := manager.Store(session); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	fmt.Printf("Session stored for profile %q.\n", profileName)
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	sessions, err := manager.List()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions stored. Run 'ssarchive auth login' to add one.")
		return nil
	}

	for _, s := range sessions {
		masked := auth.SanitizeSession(s)
		fmt.Printf("%-20s cookie=%s modified=%s\n",
			masked.Profile, masked.Cookie, masked.LastModified.Format("2006-01-02 15:04"))
	}
	return nil
}

func runAuthRemove(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("Session removed for profile %q.\n", args[0])
	return nil
}
