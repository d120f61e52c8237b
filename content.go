package main

// Project is one card in the project showcase. Cards with a VideoRef get a
// lazily activated player; the rest show Image.
type Project struct {
	Title       string
	Description string
	VideoRef    string
	VideoStart  int
	Image       string
	Badges      []string
	Repo        string
}

type Experience struct {
	Title       string
	Description string
}

type Link struct {
	Label string
	URL   string
}

var (
	Owner = "Myles Scott"

	Tagline = `Third-year Computer Science major and Chancellor's Science Scholar at UNC, combining a drive for
	innovation in tech with dedication as a Division I track athlete.`

	AboutMe = `I'm a Computer Science student at UNC Chapel Hill and a Division I track athlete with a passion for
	building technology that makes a tangible impact. I've worked on projects like an AI foul detection system for
	track & field and BikeWatch UNC, a campus platform to track and prevent bike theft. Currently, I'm an
	undergraduate researcher in the Society-Centered Artificial Intelligence Lab (SAIL), where I develop machine
	learning models with a focus on fairness and reproducibility, and build scalable FastAPI pipelines for data
	processing and deployment. Across my work, I enjoy tackling real-world problems, collaborating across
	disciplines, and turning ideas into practical solutions.`

	Projects = []Project{
		{
			Title:       "AI Foul Detection System",
			Description: "Real-time foul detector for track and field events using a custom-trained YOLOV8 deep learning model.",
			VideoRef:    "LmHFdx8SZsU",
			VideoStart:  5,
			Badges:      []string{"Olympic-Level Interest", "100k+ Views on @ThrowersUniverse"},
			Repo:        "https://github.com/Myles94/AI-Foul-Detector",
		},
		{
			Title:       "BikeWatch UNC (Coming Soon!)",
			Description: "Full stack web app for reporting stolen bikes and e-scooters on UNC's campus.",
			Image:       "/images/bikewatch-screenshot.png",
			Repo:        "https://github.com/Myles94/bikewatch-unc",
		},
	}

	Experiences = []Experience{
		{
			Title:       "Undergraduate Research Assistant",
			Description: "Collaborating on machine learning projects focusing on fairness, reproducibility, and applied AI research.",
		},
		{
			Title:       "Team Lead (HEALLY)",
			Description: "Helped lead a student-led AI for education startup, guiding development of an AI tutor now used by UNC students under mentorship from industry experts.",
		},
	}

	Skills = []string{"Python", "React", "scikit-learn", "FastAPI", "PyTorch", "TensorFlow", "OpenCV", "Java", "Git", "PostgreSQL"}

	ContactEmail = "mylesscott.unc@gmail.com"

	SocialLinks = []Link{
		{Label: "LinkedIn", URL: "https://www.linkedin.com/in/myles-scott-7545852a6"},
		{Label: "GitHub", URL: "https://github.com/Myles94"},
	}
)
