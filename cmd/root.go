/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	dp700 "github.com/allbin/go-dp700"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dp700ctl <port>",
	Short: "Control Rigol DP700 series power supplies",
	Long: `Control a Rigol DP700 series power supply over its serial interface.

The flags below are applied in a fixed order: identification, recall,
voltage, current, enable/disable/toggle, save, readback. Without any
flags the command just verifies that the instrument answers.

Example usage:
  dp700ctl /dev/ttyUSB0 -i
  dp700ctl /dev/ttyUSB0 --voltage 5 --current 0.5 --enable
  dp700ctl /dev/ttyUSB0 --recall 3 --readback
  dp700ctl /dev/ttyUSB0 --disable --save 1`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runRoot(cmd, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dp700ctl.yaml)")
	rootCmd.PersistentFlags().IntP("baud", "b", 9600, "Baud rate")
	rootCmd.PersistentFlags().Duration("timeout", 200*time.Millisecond, "Timeout per reply")

	viper.BindPFlag("baud", rootCmd.PersistentFlags().Lookup("baud"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))

	rootCmd.Flags().BoolP("identification", "i", false, "Print the instrument identification")
	rootCmd.Flags().Bool("enable", false, "Switch the output on")
	rootCmd.Flags().Bool("disable", false, "Switch the output off")
	rootCmd.Flags().Bool("toggle", false, "Flip the output state")
	rootCmd.Flags().Float64("voltage", 0, "Set the voltage setpoint in volts")
	rootCmd.Flags().Float64("current", 0, "Set the current setpoint in amps")
	rootCmd.Flags().Int("recall", 0, "Recall settings from a memory slot")
	rootCmd.Flags().Int("save", 0, "Save settings to a memory slot")
	rootCmd.Flags().Bool("readback", false, "Print measured voltage and current")

	rootCmd.MarkFlagsMutuallyExclusive("enable", "disable", "toggle")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".dp700ctl" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".dp700ctl")
	}

	viper.SetEnvPrefix("DP700")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// sessionOptions builds session options from the resolved flag, config
// file and environment values.
func sessionOptions() []dp700.Option {
	opts := []dp700.Option{
		dp700.WithBaudRate(viper.GetInt("baud")),
		dp700.WithReadTimeout(viper.GetDuration("timeout")),
	}
	if viper.IsSet("max-voltage") {
		opts = append(opts, dp700.WithVoltageRange(0, viper.GetFloat64("max-voltage")))
	}
	if viper.IsSet("max-current") {
		opts = append(opts, dp700.WithCurrentRange(0, viper.GetFloat64("max-current")))
	}
	if viper.IsSet("memory-slots") {
		opts = append(opts, dp700.WithMemorySlots(1, viper.GetInt("memory-slots")))
	}
	return opts
}

func runRoot(cmd *cobra.Command, device string) error {
	identification, _ := cmd.Flags().GetBool("identification")
	enable, _ := cmd.Flags().GetBool("enable")
	disable, _ := cmd.Flags().GetBool("disable")
	toggle, _ := cmd.Flags().GetBool("toggle")
	voltage, _ := cmd.Flags().GetFloat64("voltage")
	current, _ := cmd.Flags().GetFloat64("current")
	recallSlot, _ := cmd.Flags().GetInt("recall")
	saveSlot, _ := cmd.Flags().GetInt("save")
	readback, _ := cmd.Flags().GetBool("readback")

	setVoltage := cmd.Flags().Changed("voltage")
	setCurrent := cmd.Flags().Changed("current")
	recall := cmd.Flags().Changed("recall")
	save := cmd.Flags().Changed("save")

	// Styled output
	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("40")).
		Bold(true)
	ok := successStyle.Render("✓")

	return dp700.WithSession(device, func(s *dp700.Session) error {
		if identification {
			id, err := s.Identification()
			if err != nil {
				return err
			}
			fmt.Println(id)
		}

		if recall {
			if err := s.RecallFromMemory(recallSlot); err != nil {
				return err
			}
			fmt.Printf("%s Recalled memory slot %d\n", ok, recallSlot)
		}

		if setVoltage {
			if err := s.SetOutputVoltage(voltage); err != nil {
				return err
			}
			fmt.Printf("%s Voltage setpoint %.3f V\n", ok, voltage)
		}

		if setCurrent {
			if err := s.SetOutputCurrent(current); err != nil {
				return err
			}
			fmt.Printf("%s Current setpoint %.3f A\n", ok, current)
		}

		switch {
		case enable:
			if err := s.EnableOutput(true); err != nil {
				return err
			}
			fmt.Printf("%s Output enabled\n", ok)
		case disable:
			if err := s.EnableOutput(false); err != nil {
				return err
			}
			fmt.Printf("%s Output disabled\n", ok)
		case toggle:
			on, err := s.OutputEnabled()
			if err != nil {
				return err
			}
			if err := s.EnableOutput(!on); err != nil {
				return err
			}
			if on {
				fmt.Printf("%s Output disabled\n", ok)
			} else {
				fmt.Printf("%s Output enabled\n", ok)
			}
		}

		if save {
			if err := s.SaveToMemory(saveSlot); err != nil {
				return err
			}
			fmt.Printf("%s Saved to memory slot %d\n", ok, saveSlot)
		}

		if readback {
			v, err := s.OutputVoltage()
			if err != nil {
				return err
			}
			a, err := s.OutputCurrent()
			if err != nil {
				return err
			}
			fmt.Printf("Voltage: %.3f V\n", v)
			fmt.Printf("Current: %.3f A\n", a)
		}

		// Bare invocation: report that the instrument answered
		if !identification && !recall && !setVoltage && !setCurrent &&
			!enable && !disable && !toggle && !save && !readback {
			id := s.Identity()
			fmt.Printf("%s Connected to %s %s %s\n", ok, id.Manufacturer, id.Model, id.Serial)
		}

		return nil
	}, sessionOptions()...)
}
