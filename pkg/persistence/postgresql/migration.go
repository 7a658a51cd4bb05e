package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create reports table
			CREATE TABLE reports (
				id UUID PRIMARY KEY,
				hash_id UUID NOT NULL UNIQUE,
				template_id VARCHAR(255) NOT NULL,
				input_args JSONB NOT NULL DEFAULT '{}',
				status CHAR(1) NOT NULL CHECK (status IN ('P', 'F', 'G', 'D')),
				output_content TEXT NOT NULL DEFAULT '',
				output_file VARCHAR(1024) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_reports_template_id ON reports(template_id);
			CREATE INDEX idx_reports_status ON reports(status);
			CREATE INDEX idx_reports_created_at ON reports(created_at);
		`,
	}
}
