package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vidyasagar/gsurf/internal/browser"
	"github.com/vidyasagar/gsurf/internal/gemini"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <address>",
	Short: "Fetch a Gemini resource and print its body",
	Long: `Fetch requests a single resource, following up to five redirects,
and writes the body to standard output. Certificates are checked against
the same known-hosts table the browser uses.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().Bool("gemtext", false, "print the parsed page as normalised gemtext")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	u, err := gemini.Resolve(args[0], nil)
	if err != nil {
		return err
	}

	for hops := 0; ; hops++ {
		out, err := e.client.Fetch(cmd.Context(), u)
		if err != nil {
			return err
		}

		switch out.Kind {
		case gemini.OutcomeSuccess:
			if asGemtext, _ := cmd.Flags().GetBool("gemtext"); asGemtext {
				doc := browser.Decode(out.MIME, out.Body, out.URL)
				_, err = fmt.Fprint(cmd.OutOrStdout(), gemini.Format(doc.Lines))
				return err
			}
			_, err = cmd.OutOrStdout().Write(out.Body)
			return err

		case gemini.OutcomeRedirect:
			if hops >= browser.MaxRedirects {
				return gemini.NewFailure(gemini.KindTooManyRedirects, "", nil)
			}
			if out.Target.Scheme != gemini.Scheme {
				return fmt.Errorf("redirected to %s", out.Target)
			}
			fmt.Fprintf(os.Stderr, "→ %s\n", out.Target)
			u = out.Target

		case gemini.OutcomeInput:
			return fmt.Errorf("%s asks for input: %q; add it as the query, e.g. %s",
				u.Host, out.Prompt, gemini.WithQuery(u, "answer"))

		default:
			err := out.Err()
			if gemini.KindOf(err) == gemini.KindCertificateMismatch {
				return fmt.Errorf("%w\nrun `gsurf known-hosts forget %s` if the change is expected", err, gemini.PinKey(u))
			}
			return err
		}
	}
}
