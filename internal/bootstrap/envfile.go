package bootstrap

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

type section struct {
	title string
	keys  []string
}

// envSections fixes the layout of a generated .env file.
var envSections = []section{
	{title: "Airflow", keys: []string{
		"AIRFLOW_UID",
		"AIRFLOW_PROJ_DIR",
		"_AIRFLOW_WWW_USER_USERNAME",
		"_AIRFLOW_WWW_USER_PASSWORD",
	}},
	{title: "AWS credentials", keys: []string{
		"AWS_ACCESS_KEY_ID",
		"AWS_SECRET_ACCESS_KEY",
		"AWS_DEFAULT_REGION",
	}},
	{title: "Reddit API", keys: []string{
		"REDDIT_CLIENT_ID",
		"REDDIT_CLIENT_SECRET",
		"REDDIT_USER_AGENT",
	}},
	{title: "AWS resources", keys: []string{
		"S3_BUCKET_NAME",
		"GLUE_DATABASE_NAME",
		"ATHENA_OUTPUT_LOCATION",
		"REDSHIFT_HOST",
		"REDSHIFT_PORT",
		"REDSHIFT_DATABASE",
		"REDSHIFT_USER",
		"REDSHIFT_PASSWORD",
	}},
}

// placeholders are written for every key the operator has to fill in.
var placeholders = map[string]string{
	"_AIRFLOW_WWW_USER_USERNAME": "airflow",
	"_AIRFLOW_WWW_USER_PASSWORD": "change_me",
	"AWS_ACCESS_KEY_ID":          "your_aws_access_key_here",
	"AWS_SECRET_ACCESS_KEY":      "your_aws_secret_key_here",
	"AWS_DEFAULT_REGION":         "us-east-1",
	"REDDIT_CLIENT_ID":           "your_reddit_client_id_here",
	"REDDIT_CLIENT_SECRET":       "your_reddit_client_secret_here",
	"REDDIT_USER_AGENT":          "reddit-data-pipeline/1.0",
	"S3_BUCKET_NAME":             "your_bucket_name_here",
	"GLUE_DATABASE_NAME":         "your_glue_database_here",
	"ATHENA_OUTPUT_LOCATION":     "s3://your_bucket_name_here/athena-results/",
	"REDSHIFT_HOST":              "your_cluster_endpoint_here",
	"REDSHIFT_PORT":              "5439",
	"REDSHIFT_DATABASE":          "dev",
	"REDSHIFT_USER":              "your_redshift_user_here",
	"REDSHIFT_PASSWORD":          "change_me",
}

// IsPlaceholder reports whether value is one of the template's fill-me-in
// markers.
func IsPlaceholder(value string) bool {
	return value == "change_me" || (strings.Contains(value, "your_") && strings.Contains(value, "_here"))
}

// EnvKeys returns every key a generated .env contains, in file order.
func EnvKeys() []string {
	var keys []string
	for _, s := range envSections {
		keys = append(keys, s.keys...)
	}
	return keys
}

func knownKey(key string) bool {
	for _, k := range EnvKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// renderEnv writes the template. values override placeholders.
func renderEnv(w io.Writer, values map[string]string) error {
	if _, err := fmt.Fprintln(w, "# Generated by airflow-kit setup. Replace placeholder values before starting the deployment."); err != nil {
		return err
	}

	for _, s := range envSections {
		if _, err := fmt.Fprintf(w, "\n# %s\n", s.title); err != nil {
			return err
		}
		for _, key := range s.keys {
			value, ok := values[key]
			if !ok {
				value = placeholders[key]
			}
			line, err := envLine(key, value)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

// envLine encodes one assignment so that godotenv and compose read value back
// unchanged. Single quotes keep a value literal; double quotes are only used
// for values that need no escaping and hold nothing to expand.
func envLine(key, value string) (string, error) {
	if _, err := strconv.Atoi(value); err == nil || value == "" {
		return key + "=" + value, nil
	}
	switch {
	case strings.ContainsAny(value, "\r\n"):
	case !strings.Contains(value, "'") && !strings.HasSuffix(value, "\\"):
		return key + "='" + value + "'", nil
	case !strings.ContainsAny(value, "\"\\$"):
		return key + "=\"" + value + "\"", nil
	}
	return "", fmt.Errorf("value of %s cannot be stored in .env: it spans lines or mixes ' with \", \\ or $", key)
}
