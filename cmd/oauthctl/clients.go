package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authcore/internal/clients"
	"github.com/dropDatabas3/authcore/internal/domain"
	"github.com/dropDatabas3/authcore/internal/security/password"
	tokens "github.com/dropDatabas3/authcore/internal/security/token"
)

// clientView es lo que se imprime: nunca el hash del secret.
type clientView struct {
	ClientID        string   `json:"client_id"`
	Name            string   `json:"name,omitempty"`
	GrantTypes      []string `json:"grant_types"`
	Scopes          []string `json:"scopes"`
	Authorities     []string `json:"authorities,omitempty"`
	RedirectURIs    []string `json:"redirect_uris,omitempty"`
	AccessTokenTTL  int      `json:"access_token_ttl"`
	RefreshTokenTTL int      `json:"refresh_token_ttl"`
	HashAlgorithm   string   `json:"hash_algorithm"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

func viewOf(c *domain.Client) clientView {
	gts := make([]string, len(c.GrantTypes))
	for i, g := range c.GrantTypes {
		gts[i] = string(g)
	}
	alg := "unknown"
	if strings.HasPrefix(c.SecretHash, "{") {
		if i := strings.IndexByte(c.SecretHash, '}'); i > 0 {
			alg = c.SecretHash[1:i]
		}
	}
	return clientView{
		ClientID:        c.ClientID,
		Name:            c.Name,
		GrantTypes:      gts,
		Scopes:          c.Scopes,
		Authorities:     c.Authorities,
		RedirectURIs:    c.RedirectURIs,
		AccessTokenTTL:  c.AccessTokenTTL,
		RefreshTokenTTL: c.RefreshTokenTTL,
		HashAlgorithm:   alg,
		CreatedAt:       c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:       c.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

type registrationFlags struct {
	name           string
	secret         string
	generateSecret bool
	grants         []string
	scopes         []string
	authorities    []string
	redirectURIs   []string
	accessTTL      int
	refreshTTL     int
}

func (f *registrationFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Nombre descriptivo")
	cmd.Flags().StringVar(&f.secret, "secret", os.Getenv("AUTHCORE_CLIENT_SECRET"), "Secret en plano (env AUTHCORE_CLIENT_SECRET)")
	cmd.Flags().BoolVar(&f.generateSecret, "generate-secret", false, "Genera un secret aleatorio y lo imprime una sola vez")
	cmd.Flags().StringSliceVar(&f.grants, "grant", nil, "Grant types permitidos (repetible o separado por comas)")
	cmd.Flags().StringSliceVar(&f.scopes, "scope", nil, "Scopes permitidos")
	cmd.Flags().StringSliceVar(&f.authorities, "authority", nil, "Authorities del client (client_credentials)")
	cmd.Flags().StringSliceVar(&f.redirectURIs, "redirect-uri", nil, "Redirect URIs registradas")
	cmd.Flags().IntVar(&f.accessTTL, "access-ttl", 3600, "Vida del access token en segundos")
	cmd.Flags().IntVar(&f.refreshTTL, "refresh-ttl", 0, "Vida del refresh token en segundos (0 = sin refresh)")
}

func (f *registrationFlags) registration(id string) (domain.ClientRegistration, string, error) {
	secret := f.secret
	if f.generateSecret {
		s, err := tokens.GenerateOpaqueToken(32)
		if err != nil {
			return domain.ClientRegistration{}, "", err
		}
		secret = s
	}
	gts := make([]domain.GrantType, len(f.grants))
	for i, g := range f.grants {
		gts[i] = domain.GrantType(strings.TrimSpace(g))
	}
	return domain.ClientRegistration{
		ClientID:        id,
		Name:            f.name,
		Secret:          secret,
		GrantTypes:      gts,
		Scopes:          f.scopes,
		Authorities:     f.authorities,
		RedirectURIs:    f.redirectURIs,
		AccessTokenTTL:  f.accessTTL,
		RefreshTokenTTL: f.refreshTTL,
	}, secret, nil
}

func clientCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "client", Short: "Registro de clients OAuth"}

	withRegistry := func(run func(cmd *cobra.Command, r *clients.Registry, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.context(cmd)
			defer cancel()
			st, err := g.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			r, err := clients.NewRegistry(st.Clients(), clients.Options{
				Hasher:       password.Default(),
				SecretPolicy: password.Policy{MinLength: 16},
				CacheTTL:     -1,
			})
			if err != nil {
				return err
			}
			cmd.SetContext(ctx)
			return run(cmd, r, args)
		}
	}

	var reg registrationFlags
	register := &cobra.Command{
		Use:   "register <client-id>",
		Short: "Registra un client nuevo",
		Args:  cobra.ExactArgs(1),
		RunE: withRegistry(func(cmd *cobra.Command, r *clients.Registry, args []string) error {
			in, secret, err := reg.registration(args[0])
			if err != nil {
				return err
			}
			c, err := r.Register(cmd.Context(), in)
			if err != nil {
				return err
			}
			if reg.generateSecret {
				fmt.Fprintf(cmd.ErrOrStderr(), "client_secret: %s (no se vuelve a mostrar)\n", secret)
			}
			return printClient(cmd, g, c)
		}),
	}
	reg.bind(register)

	var upd registrationFlags
	update := &cobra.Command{
		Use:   "update <client-id>",
		Short: "Reemplaza la registración (sin --secret conserva el secret actual)",
		Args:  cobra.ExactArgs(1),
		RunE: withRegistry(func(cmd *cobra.Command, r *clients.Registry, args []string) error {
			in, secret, err := upd.registration(args[0])
			if err != nil {
				return err
			}
			c, err := r.Update(cmd.Context(), in)
			if err != nil {
				return err
			}
			if upd.generateSecret {
				fmt.Fprintf(cmd.ErrOrStderr(), "client_secret: %s (no se vuelve a mostrar)\n", secret)
			}
			return printClient(cmd, g, c)
		}),
	}
	upd.bind(update)

	remove := &cobra.Command{
		Use:   "remove <client-id>",
		Short: "Elimina un client (idempotente)",
		Args:  cobra.ExactArgs(1),
		RunE: withRegistry(func(cmd *cobra.Command, r *clients.Registry, args []string) error {
			if err := r.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		}),
	}

	show := &cobra.Command{
		Use:   "show <client-id>",
		Short: "Muestra un client",
		Args:  cobra.ExactArgs(1),
		RunE: withRegistry(func(cmd *cobra.Command, r *clients.Registry, args []string) error {
			c, err := r.Find(cmd.Context(), args[0])
			if errors.Is(err, clients.ErrNoSuchClient) {
				return fmt.Errorf("client %q no existe", args[0])
			}
			if err != nil {
				return err
			}
			return printClient(cmd, g, c)
		}),
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Lista los clients",
		Args:  cobra.NoArgs,
		RunE: withRegistry(func(cmd *cobra.Command, r *clients.Registry, _ []string) error {
			cs, err := r.List(cmd.Context())
			if err != nil {
				return err
			}
			if g.out == "json" {
				views := make([]clientView, len(cs))
				for i := range cs {
					views[i] = viewOf(&cs[i])
				}
				return printJSON(cmd, views)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CLIENT_ID\tGRANTS\tSCOPES\tACCESS_TTL\tUPDATED")
			for i := range cs {
				v := viewOf(&cs[i])
				fmt.Fprintf(tw, "%s\t%s\t%s\t%ds\t%s\n", v.ClientID, strings.Join(v.GrantTypes, ","),
					strings.Join(v.Scopes, ","), v.AccessTokenTTL, humanize.Time(cs[i].UpdatedAt))
			}
			return tw.Flush()
		}),
	}

	cmd.AddCommand(register, update, remove, show, list)
	return cmd
}

func printClient(cmd *cobra.Command, g *globals, c *domain.Client) error {
	v := viewOf(c)
	if g.out == "json" {
		return printJSON(cmd, v)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "client_id:      %s\n", v.ClientID)
	if v.Name != "" {
		fmt.Fprintf(w, "name:           %s\n", v.Name)
	}
	fmt.Fprintf(w, "grant_types:    %s\n", strings.Join(v.GrantTypes, " "))
	fmt.Fprintf(w, "scopes:         %s\n", strings.Join(v.Scopes, " "))
	if len(v.Authorities) > 0 {
		fmt.Fprintf(w, "authorities:    %s\n", strings.Join(v.Authorities, " "))
	}
	if len(v.RedirectURIs) > 0 {
		fmt.Fprintf(w, "redirect_uris:  %s\n", strings.Join(v.RedirectURIs, " "))
	}
	fmt.Fprintf(w, "access_ttl:     %ds\n", v.AccessTokenTTL)
	fmt.Fprintf(w, "refresh_ttl:    %ds\n", v.RefreshTokenTTL)
	fmt.Fprintf(w, "secret_hash:    {%s}…\n", v.HashAlgorithm)
	fmt.Fprintf(w, "created:        %s\n", humanize.Time(c.CreatedAt))
	fmt.Fprintf(w, "updated:        %s\n", humanize.Time(c.UpdatedAt))
	return nil
}
