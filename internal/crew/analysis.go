package crew

import "github.com/JonMunkholm/datacrew/internal/llm"

// ReportFileName is the default name of the reporting task's output file.
const ReportFileName = "data-analysis-report.md"

// AnalysisTools are the tools handed to the analysis crew. Nil tools are
// left out.
type AnalysisTools struct {
	Search   Tool
	Profile  Tool
	Cleaning Tool
}

func nonNil(tools ...Tool) []Tool {
	var out []Tool
	for _, t := range tools {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// DefaultAnalysisCrew builds the three-agent data analysis pipeline: a
// researcher analyses the structure, a cleaning expert prepares the data and
// a reporter writes the Markdown report to reportFile. The dataset is passed
// at kickoff as the "data" input. verbose raises step logging from debug to
// info.
func DefaultAnalysisCrew(model llm.Model, tools AnalysisTools, reportFile string, maxIter int, verbose bool) (*Crew, error) {
	researcher := &Agent{
		Role:      "Data Researcher",
		Goal:      "Perform a detailed analysis of the data structures and identify patterns.",
		Backstory: "You are an experienced data scientist with a strong focus on data patterns and analysis.",
		Tools:     nonNil(tools.Search, tools.Profile),
		Memory:    true,
		Verbose:   verbose,
		MaxIter:   maxIter,
	}
	cleaner := &Agent{
		Role:      "Data Cleaning Expert",
		Goal:      "Clean the data and prepare it for analysis.",
		Backstory: "You are an expert in data cleaning and preparation, making sure the data is suitable for analysis.",
		Tools:     nonNil(tools.Cleaning),
		Memory:    true,
		Verbose:   verbose,
		MaxIter:   maxIter,
	}
	reporter := &Agent{
		Role:      "Reporter",
		Goal:      "Write a comprehensive report based on the analyses.",
		Backstory: "You are an experienced reporter who turns complex data analyses into understandable reports.",
		Memory:    true,
		Verbose:   verbose,
		MaxIter:   maxIter,
	}

	analysis := &Task{
		Description: "Analyse the data structures and identify relevant patterns. " +
			"Your report should clearly articulate the most important points.\n\nData:\n{data}",
		ExpectedOutput: "A detailed report on the data structure analysis.",
		Tools:          researcher.Tools,
		Agent:          researcher,
	}
	cleaning := &Task{
		Description:    "Clean the data and prepare it for analysis.",
		ExpectedOutput: "Cleaned and prepared data with a summary of the changes made.",
		Tools:          cleaner.Tools,
		Agent:          cleaner,
	}
	reporting := &Task{
		Description:    "Write a comprehensive report based on the results of the analysis.",
		ExpectedOutput: "A comprehensive report in Markdown based on the analysis results.",
		Agent:          reporter,
		AsyncExecution: false,
		OutputFile:     reportFile,
	}

	return New(model,
		[]*Agent{researcher, cleaner, reporter},
		[]*Task{analysis, cleaning, reporting},
		ProcessSequential,
	)
}
