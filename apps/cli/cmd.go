package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/services/apiclient"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errNotLoggedIn = errors.New("not logged in, run `masomoctl login`")
	errEmptyPasswd = errors.New("empty password")
	errUnknownRes  = errors.New("unknown resource")
)

type commandLine struct {
	conf       *core.Config
	sess       *apiclient.Session
	validate   *validator.Validate
	out        io.Writer
	passwdFile int // file descriptor the password is read from
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "masomoctl",
		Short: "Masomo - school management from the command line",
		Long: `masomoctl talks to the Masomo API with the session stored on this machine.

Use "masomoctl [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(cli.out)
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		cli.loginCmd(),
		cli.logoutCmd(),
		cli.whoamiCmd(),
		cli.getCmd(),
		cli.langCmd(),
		cli.versionCmd(),
	)
	return root
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (cli *commandLine) loginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the Masomo API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cli.out, "Password: ")
			pwd, err := readPasswordFunc(cli.passwdFile)
			fmt.Fprintln(cli.out)
			if err != nil {
				return errors.Wrap(err, "reading password")
			}
			if len(pwd) == 0 {
				return errEmptyPasswd
			}

			usr, err := cli.sess.Manager.Login(cmd.Context(), email, string(pwd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "Logged in as %s (%s)\n", usr.DisplayName(), usr.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email; the password is prompted next")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (cli *commandLine) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli.sess.Manager.Logout(cmd.Context())
			fmt.Fprintln(cli.out, "Logged out")
			return nil
		},
	}
}

func (cli *commandLine) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			usr, ok := cli.sess.Manager.CurrentUser()
			if !ok {
				return errNotLoggedIn
			}
			printPairs(cli.out, [][2]string{
				{"ID", usr.ID},
				{"Name", usr.FullName()},
				{"Email", usr.Email},
				{"Role", string(usr.Role)},
				{"Language", cli.sess.Store.Language(cmd.Context())},
			})
			return nil
		},
	}
}

func (cli *commandLine) getCmd() *cobra.Command {
	var params apiclient.ListParams
	names := make([]string, len(apiclient.AllResources))
	for i, res := range apiclient.AllResources {
		names[i] = string(res)
	}

	cmd := &cobra.Command{
		Use:       "get RESOURCE",
		Short:     "List resources",
		Long:      "List resources. RESOURCE is one of: " + joinNames(names),
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, ok := apiclient.ParseResource(args[0])
			if !ok {
				return errors.Wrapf(errUnknownRes, "%q", args[0])
			}
			if _, ok := cli.sess.Manager.CurrentUser(); !ok {
				return errNotLoggedIn
			}

			records, pagination, err := cli.sess.Client.List(cmd.Context(), res, params)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cli.out, "No records found")
				return nil
			}
			printRecords(cli.out, records)
			if pagination != nil {
				fmt.Fprintf(cli.out, "\nPage %d of %d (%d total)\n", pagination.Page, pagination.Pages, pagination.Total)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&params.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&params.Limit, "limit", 20, "page size")
	cmd.Flags().StringVarP(&params.Search, "search", "s", "", "search term")
	cmd.Flags().StringVar(&params.Sort, "sort", "", "sort field, prefixed with - for descending order")
	return cmd
}

func (cli *commandLine) langCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lang [CODE]",
		Short: "Show or set the language preference",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 0 {
				fmt.Fprintln(cli.out, cli.sess.Store.Language(ctx))
				return nil
			}

			pref := user.LanguagePreference{Language: args[0]}
			if err := pref.Validate(cli.validate); err != nil {
				return errors.Errorf("unsupported language %q, use one of: %s", args[0], joinNames(user.Languages))
			}
			if err := cli.sess.Store.SetLanguage(ctx, pref.Language); err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "Language set to %s\n", pref.Language)
			return nil
		},
	}
}

func (cli *commandLine) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			printPairs(cli.out, [][2]string{
				{"Version", cli.conf.Build},
				{"Environment", cli.conf.EnvironmentTag()},
				{"API", cli.conf.API.BaseURL},
			})
		},
	}
}

// errorMessage is what the user is shown for err.
func errorMessage(err error) string {
	if apiErr, ok := apiclient.AsError(err); ok {
		if apiErr.IsAuthExpired() {
			return apiErr.UserMessage + " Run `masomoctl login`."
		}
		return apiErr.UserMessage
	}
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		msg := verr.Error()
		flds := verr.FieldMap()
		keys := make([]string, 0, len(flds))
		for k := range flds {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg += fmt.Sprintf("\n  %s: %s", k, flds[k])
		}
		return msg
	}
	return err.Error()
}

func stdinFd() int {
	return int(syscall.Stdin)
}
