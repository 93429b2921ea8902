package main

import "github.com/spf13/cobra"

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "chatlog",
		Short:         "Browse the chatbot conversation log stored in Supabase",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if a.ready() {
				return nil
			}
			return a.setup()
		},
	}

	root.AddCommand(
		newSignUpCmd(a),
		newSignInCmd(a),
		newSignOutCmd(a),
		newResetPasswordCmd(a),
		newUpdatePasswordCmd(a),
		newWhoAmICmd(a),
		newSessionCmd(a),
		newCallbackCmd(a),
		newConversationsCmd(a),
		newMessagesCmd(a),
		newStatsCmd(a),
		newRouteCmd(a),
	)
	return root
}

func addCredentialFlags(cmd *cobra.Command, email, password *string) {
	cmd.Flags().StringVar(email, "email", "", "account email")
	cmd.Flags().StringVar(password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
}

func newSignUpCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.timeoutContext()
			defer cancel()

			result, err := a.auth.SignUp(ctx, email, password)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	addCredentialFlags(cmd, &email, &password)
	return cmd
}

func newSignInCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.timeoutContext()
			defer cancel()

			session, err := a.auth.SignIn(ctx, email, password)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), session.User)
		},
	}
	addCredentialFlags(cmd, &email, &password)
	return cmd
}

func newSignOutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := a.timeoutContext()
			defer cancel()
			return a.auth.SignOut(ctx)
		},
	}
}

func newResetPasswordCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Send a password recovery email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.timeoutContext()
			defer cancel()

			if err := a.auth.ResetPassword(ctx, email); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"email":      email,
				"redirectTo": a.cfg.RedirectURL(a.cfg.Routes.UpdatePassword),
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUpdatePasswordCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "update-password",
		Short: "Change the password of the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.timeoutContext()
			defer cancel()

			user, err := a.auth.UpdatePassword(ctx, password)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), user)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newWhoAmICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user as seen by the auth server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.timeoutContext()
			defer cancel()

			user, err := a.auth.GetUser(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), user)
		},
	}
}

func newSessionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show the stored session, refreshing it when expired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.timeoutContext()
			defer cancel()

			session, err := a.auth.GetSession(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), session)
		},
	}
}

func newCallbackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "callback <url>",
		Short: "Complete a sign in from an email link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.timeoutContext()
			defer cancel()

			result, err := a.auth.HandleCallback(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newConversationsCmd(a *app) *cobra.Command {
	var user string
	var all bool
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "List conversation summaries, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.timeoutContext()
			defer cancel()

			userID, err := a.userFilter(ctx, user, all)
			if err != nil {
				return err
			}
			summaries, err := a.conversations.Conversations(ctx, userID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summaries)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id to filter by (defaults to the signed-in user)")
	cmd.Flags().BoolVar(&all, "all", false, "include every user")
	return cmd
}

func newMessagesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "messages <sessionId>",
		Short: "Show the messages of one conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.timeoutContext()
			defer cancel()

			messages, err := a.conversations.ConversationMessages(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), messages)
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	var user string
	var all bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show usage statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.timeoutContext()
			defer cancel()

			userID, err := a.userFilter(ctx, user, all)
			if err != nil {
				return err
			}
			stats, err := a.conversations.Stats(ctx, userID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id to filter by (defaults to the signed-in user)")
	cmd.Flags().BoolVar(&all, "all", false, "include every user")
	return cmd
}

func newRouteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "route <path>",
		Short: "Check where the route guard sends the current user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.timeoutContext()
			defer cancel()

			session, err := a.auth.GetSession(ctx)
			if err != nil {
				a.logger.Warn().Err(err).Msg("Treating visitor as signed out")
			}

			redirect, allowed := a.guard.Check(args[0], session != nil)
			out := map[string]any{
				"path":     args[0],
				"signedIn": session != nil,
				"allowed":  allowed,
			}
			if !allowed {
				out["redirectTo"] = a.cfg.RedirectURL(redirect)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}
